/*
 * meshnet LoRa store-and-forward mesh engine.
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package mesh

import "github.com/prometheus/client_golang/prometheus"

// Metrics mirrors a Dispatcher's and PacketManager's counters into
// prometheus gauges, polled on demand rather than pushed, since the
// Dispatcher's own counters are the durable source of truth and a node may
// run with no scrape endpoint at all.
type Metrics struct {
	airtimeMillis  prometheus.Gauge
	sentFlood      prometheus.Gauge
	sentDirect     prometheus.Gauge
	recvFlood      prometheus.Gauge
	recvDirect     prometheus.Gauge
	poolExhausted  prometheus.Gauge
	poolFree       prometheus.Gauge
	outboundQueued prometheus.GaugeFunc
}

// NewMetrics creates and registers the mesh's gauges against reg. Pass
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer, disp *Dispatcher, mgr *PacketManager, clock MillisecondClock) *Metrics {
	m := &Metrics{
		airtimeMillis: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "meshnet",
			Name:      "airtime_millis_total",
			Help:      "Cumulative transmit airtime used, in milliseconds.",
		}),
		sentFlood: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "meshnet", Name: "packets_sent_flood_total",
			Help: "Packets transmitted with a flood route type.",
		}),
		sentDirect: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "meshnet", Name: "packets_sent_direct_total",
			Help: "Packets transmitted with a direct route type.",
		}),
		recvFlood: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "meshnet", Name: "packets_recv_flood_total",
			Help: "Packets received with a flood route type.",
		}),
		recvDirect: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "meshnet", Name: "packets_recv_direct_total",
			Help: "Packets received with a direct route type.",
		}),
		poolExhausted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "meshnet", Name: "pool_exhausted_events_total",
			Help: "Times ObtainPacket found no free packet in the pool.",
		}),
		poolFree: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "meshnet", Name: "pool_free_packets",
			Help: "Packets currently available in the static pool.",
		}),
	}
	m.outboundQueued = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "meshnet", Name: "outbound_queue_depth",
		Help: "Outbound packets currently queued, due or not.",
	}, func() float64 { return float64(mgr.OutboundCount(clock.Millis())) })

	for _, c := range []prometheus.Collector{
		m.airtimeMillis, m.sentFlood, m.sentDirect, m.recvFlood, m.recvDirect,
		m.poolExhausted, m.poolFree, m.outboundQueued,
	} {
		reg.MustRegister(c)
	}

	_ = disp
	return m
}

// Sample pulls the current values from disp and mgr into the registered
// gauges. Call this periodically (e.g. once per Dispatcher.Loop iteration,
// or on a timer) since the underlying counters are plain fields, not
// atomics the collector can read lock-free.
func (m *Metrics) Sample(disp *Dispatcher, mgr *PacketManager) {
	m.airtimeMillis.Set(float64(disp.TotalAirTime()))
	m.sentFlood.Set(float64(disp.NumSentFlood()))
	m.sentDirect.Set(float64(disp.NumSentDirect()))
	m.recvFlood.Set(float64(disp.NumRecvFlood()))
	m.recvDirect.Set(float64(disp.NumRecvDirect()))
	m.poolExhausted.Set(float64(disp.NumFullEvents()))
	m.poolFree.Set(float64(mgr.FreeCount()))
}
