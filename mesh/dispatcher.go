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

import "go.uber.org/zap"

// ActionKind tells the Dispatcher what to do with a just-received packet,
// the Go replacement for the original firmware's ACTION_* bitmasked
// return value from the virtual onRecvPacket override.
type ActionKind uint8

const (
	// ActionRelease returns the packet to the pool immediately; nothing
	// further happens with it.
	ActionRelease ActionKind = iota
	// ActionHold hands the packet to the caller's own bookkeeping (e.g.
	// queued for deferred inbound processing); the Dispatcher no longer
	// touches it.
	ActionHold
	// ActionRetransmit re-queues the packet for outbound transmission at
	// Priority, delayed by Delay milliseconds.
	ActionRetransmit
)

// DispatcherAction is the decision a DispatcherHooks.OnRecvPacket
// implementation returns for each received packet.
type DispatcherAction struct {
	Kind     ActionKind
	Priority uint8
	Delay    uint32 // milliseconds, only meaningful when Kind == ActionRetransmit
}

// Release is the zero-value convenience for the common case.
func Release() DispatcherAction { return DispatcherAction{Kind: ActionRelease} }

// Hold tells the Dispatcher the caller has taken ownership of the packet.
func Hold() DispatcherAction { return DispatcherAction{Kind: ActionHold} }

// Retransmit re-queues the packet for outbound send.
func Retransmit(priority uint8, delayMillis uint32) DispatcherAction {
	return DispatcherAction{Kind: ActionRetransmit, Priority: priority, Delay: delayMillis}
}

// DispatcherHooks is the small seam a Mesh implementation plugs into the
// Dispatcher, replacing the original firmware's virtual-method overrides
// (onRecvPacket, getAirtimeBudgetFactor) with plain interface satisfaction.
type DispatcherHooks interface {
	// OnRecvPacket classifies a freshly decoded inbound packet and decides
	// its fate. Called once per received frame, before any retransmission
	// scheduling happens.
	OnRecvPacket(pkt *Packet) DispatcherAction

	// AirtimeBudgetFactor returns the multiplier applied to the last
	// transmission's airtime to compute the following radio-silence
	// window (e.g. 2.0 enforces a roughly 1-in-3 duty cycle).
	AirtimeBudgetFactor() float32
}

// Dispatcher is the single-threaded radio arbiter: it polls the Radio for
// inbound frames, hands them to hooks for classification, and drains the
// PacketManager's outbound queue under an airtime-budget duty cycle and a
// listen-before-talk gate. There is exactly one outbound send in flight at
// any time.
type Dispatcher struct {
	mgr   *PacketManager
	radio Radio
	clock MillisecondClock
	hooks DispatcherHooks
	log   *zap.Logger

	outbound      *Packet
	outboundStart uint32
	outboundUntil uint32

	totalAirTime uint32
	rxAirTime    uint32
	nextTxTime   uint32

	nSentFlood  uint32
	nSentDirect uint32
	nRecvFlood  uint32
	nRecvDirect uint32
	nFullEvents uint32
}

// NewDispatcher wires a Dispatcher to its Radio, clock, packet pool and
// classification hooks. logger may be nil, in which case logging is a no-op.
// hooks may be nil if the caller has a construction-order dependency (a Mesh
// needs a *Dispatcher to build, and a Mesh is itself the natural
// DispatcherHooks implementation) — call SetHooks once the Mesh exists, and
// before the first Loop.
func NewDispatcher(radio Radio, clock MillisecondClock, mgr *PacketManager, hooks DispatcherHooks, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{mgr: mgr, radio: radio, clock: clock, hooks: hooks, log: logger}
}

// SetHooks assigns the classification hooks a Dispatcher drives every Loop.
// Exists to break the Dispatcher/Mesh construction cycle: build the
// Dispatcher first, build the Mesh against it, then SetHooks(mesh).
func (d *Dispatcher) SetHooks(hooks DispatcherHooks) { d.hooks = hooks }

// Begin initializes the underlying radio. Call once before the first Loop.
func (d *Dispatcher) Begin() error {
	return d.radio.Begin()
}

// millisHasNowPassed reports whether the clock has advanced past timestamp,
// correctly handling millisecond-counter wraparound via signed subtraction.
func (d *Dispatcher) millisHasNowPassed(timestamp uint32) bool {
	return int32(d.clock.Millis()-timestamp) > 0
}

// futureMillis returns a timestamp millisFromNow milliseconds in the future.
func (d *Dispatcher) futureMillis(millisFromNow uint32) uint32 {
	return d.clock.Millis() + millisFromNow
}

// ObtainPacket allocates a fresh packet from the pool, or ErrPoolExhausted
// if none is free.
func (d *Dispatcher) ObtainPacket() (*Packet, error) {
	pkt := d.mgr.Alloc()
	if pkt == nil {
		d.nFullEvents++
		return nil, ErrPoolExhausted
	}
	return pkt, nil
}

// ReleasePacket returns packet to the pool.
func (d *Dispatcher) ReleasePacket(packet *Packet) {
	d.mgr.Free(packet)
}

// SendPacket validates packet's size and queues it for transmission at the
// given priority, delayed by delayMillis.
func (d *Dispatcher) SendPacket(packet *Packet, priority uint8, delayMillis uint32) error {
	if len(packet.Path) > MaxPathSize || len(packet.Payload) > MaxPacketPayload {
		d.mgr.Free(packet)
		return ErrPacketTooLarge
	}
	d.mgr.QueueOutbound(packet, priority, d.futureMillis(delayMillis))
	return nil
}

// Loop drives one iteration of the super-loop: finish or time out any
// in-flight send, then poll for a received frame, then consider starting
// the next outbound send. Callers invoke this repeatedly, as fast or as
// slow as their platform's main loop allows — there is no blocking inside.
func (d *Dispatcher) Loop() {
	if d.outbound != nil {
		if d.radio.IsSendComplete() {
			elapsed := d.clock.Millis() - d.outboundStart
			d.totalAirTime += elapsed
			d.nextTxTime = d.futureMillis(uint32(float32(elapsed) * d.hooks.AirtimeBudgetFactor()))

			d.radio.OnSendFinished()
			sent := d.outbound
			if sent.IsFlood() {
				d.nSentFlood++
			} else {
				d.nSentDirect++
			}
			d.log.Debug("packet sent",
				zap.String("route", RouteTypeName(sent.RouteType())),
				zap.String("type", PayloadTypeName(sent.PayloadType())),
				zap.Int("payload_len", len(sent.Payload)))
			d.mgr.Free(sent)
			d.outbound = nil
		} else if d.millisHasNowPassed(d.outboundUntil) {
			d.log.Warn("outbound packet send timed out")
			d.radio.OnSendFinished()
			d.mgr.Free(d.outbound)
			d.outbound = nil
		} else {
			return // can't do any more radio activity until send completes or times out
		}
	}

	d.checkRecv()
	d.checkSend()
}

func (d *Dispatcher) checkRecv() {
	raw := d.radio.RecvRaw()
	if raw == nil {
		return
	}

	pkt := d.mgr.Alloc()
	if pkt == nil {
		d.nFullEvents++
		d.log.Debug("dropped inbound frame: packet pool exhausted")
		return
	}

	if err := readPacketInto(pkt, raw); err != nil {
		d.log.Debug("dropped corrupt or oversized frame", zap.Int("len", len(raw)), zap.Error(err))
		d.mgr.Free(pkt)
		return
	}
	pkt.SNR = int8(d.radio.LastSNR() * 4)

	if pkt.IsFlood() {
		d.nRecvFlood++
	} else {
		d.nRecvDirect++
	}
	score := d.radio.PacketScore(d.radio.LastSNR(), len(raw))
	d.log.Debug("packet received",
		zap.String("route", RouteTypeName(pkt.RouteType())),
		zap.String("type", PayloadTypeName(pkt.PayloadType())),
		zap.Int("payload_len", len(pkt.Payload)),
		zap.Float32("snr", d.radio.LastSNR()),
		zap.Float32("score", score))

	action := d.hooks.OnRecvPacket(pkt)
	switch action.Kind {
	case ActionRelease:
		d.mgr.Free(pkt)
	case ActionHold:
		// caller now owns pkt
	case ActionRetransmit:
		d.mgr.QueueOutbound(pkt, action.Priority, d.futureMillis(action.Delay))
	}
}

func (d *Dispatcher) checkSend() {
	now := d.clock.Millis()
	if d.mgr.OutboundCount(now) == 0 {
		return
	}
	if !d.millisHasNowPassed(d.nextTxTime) {
		return // still inside the airtime-budget silence window
	}
	if d.radio.IsReceiving() {
		return // listen-before-talk: channel is busy
	}

	pkt := d.mgr.NextOutbound(now)
	if pkt == nil {
		return
	}

	raw := make([]byte, pkt.rawLen())
	n := writePacket(pkt, raw)
	raw = raw[:n]

	if len(raw) > MTU {
		d.log.Warn("dropping oversized outbound frame", zap.Int("len", len(raw)))
		d.mgr.Free(pkt)
		return
	}

	maxAirtime := d.radio.EstAirtimeMillis(len(raw)) * 3 / 2
	d.outboundStart = d.clock.Millis()
	if err := d.radio.StartSendRaw(raw); err != nil {
		d.log.Warn("failed to start outbound send", zap.Error(err))
		d.mgr.Free(pkt)
		return
	}
	d.outboundUntil = d.futureMillis(maxAirtime)
	d.outbound = pkt
}

// TotalAirTime returns the cumulative transmit airtime used, in milliseconds.
func (d *Dispatcher) TotalAirTime() uint32 { return d.totalAirTime }

// NumSentFlood, NumSentDirect, NumRecvFlood and NumRecvDirect expose the
// Dispatcher's packet counters, mirrored into prometheus by mesh/metrics.go.
func (d *Dispatcher) NumSentFlood() uint32  { return d.nSentFlood }
func (d *Dispatcher) NumSentDirect() uint32 { return d.nSentDirect }
func (d *Dispatcher) NumRecvFlood() uint32  { return d.nRecvFlood }
func (d *Dispatcher) NumRecvDirect() uint32 { return d.nRecvDirect }
func (d *Dispatcher) NumFullEvents() uint32 { return d.nFullEvents }

// ResetStats zeroes every counter in §4.5 (sent/received by route type,
// total airtime, pool-exhaustion events) without affecting in-flight send
// state or the airtime-budget silence window.
func (d *Dispatcher) ResetStats() {
	d.nSentFlood, d.nSentDirect = 0, 0
	d.nRecvFlood, d.nRecvDirect = 0, 0
	d.nFullEvents = 0
	d.totalAirTime = 0
}
