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

// Package simradio implements mesh.Radio over an in-memory, lossy shared
// medium, letting a whole mesh of nodes run inside a single test process
// with a manually driven clock instead of real LoRa hardware.
package simradio

import (
	"math/rand"
	"sync"

	"github.com/lx7m/meshnet/mesh"
)

// Medium is a shared broadcast domain: every Radio registered against it can
// hear every other Radio's transmissions, subject to Medium.LossProbability.
type Medium struct {
	mu              sync.Mutex
	radios          []*Radio
	rng             *rand.Rand
	LossProbability float64 // 0..1, fraction of frames silently dropped in transit
}

// NewMedium creates an empty shared medium. seed makes frame loss and SNR
// jitter reproducible across test runs.
func NewMedium(seed int64) *Medium {
	return &Medium{rng: rand.New(rand.NewSource(seed))}
}

func (m *Medium) register(r *Radio) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.radios = append(m.radios, r)
}

// broadcast delivers frame to every other registered radio, dropping it per
// LossProbability and stamping a jittered SNR/RSSI pair on each delivery.
func (m *Medium) broadcast(from *Radio, frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := append([]byte(nil), frame...)
	for _, r := range m.radios {
		if r == from {
			continue
		}
		if m.rng.Float64() < m.LossProbability {
			continue
		}
		snr := float32(6 + m.rng.Intn(6))  // 6..11 dB
		rssi := float32(-80 + m.rng.Intn(20)) // -80..-61 dBm
		r.deliver(cp, snr, rssi)
	}
}

// Radio is one node's mesh.Radio implementation, backed by Medium.
type Radio struct {
	m     *Medium
	clock mesh.MillisecondClock

	mu       sync.Mutex
	rxQueue  [][]byte
	lastSNR  float32
	lastRSSI float32

	sendFrame []byte
	sendStart uint32
	sendUntil uint32
	inFlight  bool

	// BytesPerMillis models the LoRa link's effective throughput for
	// EstAirtimeMillis; a real radio would derive this from spreading
	// factor, bandwidth and coding rate instead.
	BytesPerMillis float64
}

var _ mesh.Radio = (*Radio)(nil)

// NewRadio creates a Radio attached to medium, using clock for airtime
// bookkeeping. BytesPerMillis starts at a conservative SF9-ish 0.05
// (≈20ms/byte); if a caller sets it to zero, EstAirtimeMillis falls back to
// 1ms per byte.
func NewRadio(medium *Medium, clock mesh.MillisecondClock) *Radio {
	r := &Radio{m: medium, clock: clock, BytesPerMillis: 0.05}
	medium.register(r)
	return r
}

func (r *Radio) deliver(frame []byte, snr, rssi float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rxQueue = append(r.rxQueue, frame)
	r.lastSNR = snr
	r.lastRSSI = rssi
}

// Begin is a no-op for the simulated medium.
func (r *Radio) Begin() error { return nil }

// RecvRaw pops the oldest queued frame, or nil if none is pending.
func (r *Radio) RecvRaw() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.rxQueue) == 0 {
		return nil
	}
	frame := r.rxQueue[0]
	r.rxQueue = r.rxQueue[1:]
	return frame
}

// EstAirtimeMillis estimates transmit time from the configured throughput.
func (r *Radio) EstAirtimeMillis(lenBytes int) uint32 {
	if r.BytesPerMillis <= 0 {
		return uint32(lenBytes)
	}
	return uint32(float64(lenBytes) / r.BytesPerMillis)
}

// PacketScore favors higher SNR and shorter packets, a stand-in for the
// original firmware's link-quality heuristic used to pick path-learning
// candidates.
func (r *Radio) PacketScore(snr float32, packetLen int) float32 {
	return snr - float32(packetLen)/64.0
}

// StartSendRaw begins transmitting frame onto the medium immediately
// (broadcast happens eagerly; IsSendComplete simulates the airtime delay).
func (r *Radio) StartSendRaw(frame []byte) error {
	r.mu.Lock()
	r.sendFrame = append([]byte(nil), frame...)
	r.sendStart = r.clock.Millis()
	r.sendUntil = r.sendStart + r.EstAirtimeMillis(len(frame))
	r.inFlight = true
	r.mu.Unlock()

	r.m.broadcast(r, frame)
	return nil
}

// IsSendComplete reports whether the simulated airtime for the current send
// has elapsed.
func (r *Radio) IsSendComplete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.inFlight {
		return true
	}
	return int32(r.clock.Millis()-r.sendUntil) >= 0
}

// OnSendFinished clears in-flight send state.
func (r *Radio) OnSendFinished() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight = false
	r.sendFrame = nil
}

// IsReceiving always reports false: this simulated medium delivers whole
// frames atomically rather than modeling mid-receive busy time, so it never
// gates a send via listen-before-talk.
func (r *Radio) IsReceiving() bool { return false }

// LastSNR returns the SNR of the most recently delivered frame.
func (r *Radio) LastSNR() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSNR
}

// LastRSSI returns the RSSI of the most recently delivered frame.
func (r *Radio) LastRSSI() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRSSI
}
