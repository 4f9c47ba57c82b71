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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDispatcher(hooks DispatcherHooks) (*Dispatcher, *PacketManager, *fakeClock, *fakeRadio) {
	clock := &fakeClock{}
	radio := &fakeRadio{clock: clock, airtimeMillis: 100}
	mgr := NewPacketManager(8)
	d := NewDispatcher(radio, clock, mgr, hooks, nil)
	return d, mgr, clock, radio
}

func TestDispatcherAirtimeBudgetEnforced(t *testing.T) {
	d, _, clock, radio := newTestDispatcher(fixedBudget{factor: 2.0})
	radio.completeAfter = 1 // IsSendComplete true once clock.Millis() >= 1

	p, err := d.ObtainPacket()
	require.NoError(t, err)
	p.Payload = []byte("S4 scenario")
	require.NoError(t, d.SendPacket(p, 0, 0))

	clock.Advance(1) // ms=1: starts the send (outboundStart=1)
	d.Loop()
	require.Len(t, radio.sent, 1)
	require.Equal(t, uint32(0), d.TotalAirTime(), "airtime is credited only once the send completes")

	clock.Advance(1) // ms=2: IsSendComplete now true, elapsed = 2-1 = 1ms
	d.Loop()
	require.Equal(t, uint32(1), d.TotalAirTime())
	// budget_factor = 2.0 on a 1ms transmit means next_tx_time = now(2) + 2 = 4.

	second, _ := d.ObtainPacket()
	second.Payload = []byte("too soon")
	require.NoError(t, d.SendPacket(second, 0, 0))

	d.Loop() // still ms=2, well inside the silence window: nothing should start
	require.Len(t, radio.sent, 1, "no second frame may be sent before the budget window elapses")

	clock.Advance(2) // ms=4: still not strictly past next_tx_time
	d.Loop()
	require.Len(t, radio.sent, 1, "transmit must not start exactly at the boundary, only strictly after it")

	clock.Advance(1) // ms=5: strictly past next_tx_time
	d.Loop()
	require.Len(t, radio.sent, 2, "transmit allowed again once the budget window has strictly elapsed")
}

func TestDispatcherAtMostOneInFlight(t *testing.T) {
	d, _, clock, radio := newTestDispatcher(fixedBudget{factor: 1.0})
	radio.completeAfter = 1000 // never completes within this test

	a, _ := d.ObtainPacket()
	a.Payload = []byte("a")
	require.NoError(t, d.SendPacket(a, 0, 0))
	b, _ := d.ObtainPacket()
	b.Payload = []byte("b")
	require.NoError(t, d.SendPacket(b, 1, 0))

	clock.Advance(1)
	d.Loop()
	require.Len(t, radio.sent, 1, "only the first due packet may start sending")

	clock.Advance(1)
	d.Loop()
	require.Len(t, radio.sent, 1, "a second send must not start while one is already in flight")
}

func TestDispatcherSendTimeoutNoBudgetPenalty(t *testing.T) {
	d, _, clock, radio := newTestDispatcher(fixedBudget{factor: 2.0})
	radio.airtimeMillis = 10
	radio.completeAfter = 1_000_000 // never completes: forces the timeout path

	p, _ := d.ObtainPacket()
	p.Payload = []byte("times out")
	require.NoError(t, d.SendPacket(p, 0, 0))

	clock.Advance(1)
	d.Loop() // starts the send; outboundUntil = now + 10*3/2 = 15ms out

	clock.Advance(20)
	d.Loop() // now past outboundUntil: dispatcher must time out and free

	require.Equal(t, uint32(0), d.TotalAirTime(), "a timed-out send must not be credited as airtime")

	// No penalty: a second packet should be allowed to send immediately.
	q, _ := d.ObtainPacket()
	q.Payload = []byte("should go right out")
	require.NoError(t, d.SendPacket(q, 0, 0))
	d.Loop()
	require.Len(t, radio.sent, 2)
}

func TestDispatcherObtainPacketExhaustionCountsEvent(t *testing.T) {
	hooks := fixedBudget{factor: 1.0}
	clock := &fakeClock{}
	radio := &fakeRadio{clock: clock}
	mgr := NewPacketManager(1)
	d := NewDispatcher(radio, clock, mgr, hooks, nil)

	_, err := d.ObtainPacket()
	require.NoError(t, err)
	_, err = d.ObtainPacket()
	require.ErrorIs(t, err, ErrPoolExhausted)
	require.Equal(t, uint32(1), d.NumFullEvents())
}

func TestDispatcherRecvDropsCorruptFrameWithoutCrediting(t *testing.T) {
	d, _, _, radio := newTestDispatcher(fixedBudget{factor: 1.0})
	radio.rxQueue = append(radio.rxQueue, []byte{0x00}) // too short to decode

	d.Loop()
	require.Equal(t, uint32(0), d.NumRecvFlood())
	require.Equal(t, uint32(0), d.NumRecvDirect())
}

func TestDispatcherRecvDropsFrameOnPoolExhaustion(t *testing.T) {
	clock := &fakeClock{}
	radio := &fakeRadio{clock: clock}
	mgr := NewPacketManager(0) // no free packets at all
	d := NewDispatcher(radio, clock, mgr, fixedBudget{factor: 1.0}, nil)

	frame := make([]byte, 4)
	frame[0] = makeHeader(RouteFlood, PayloadAdvert)
	radio.rxQueue = append(radio.rxQueue, frame)

	d.Loop()
	require.Equal(t, uint32(1), d.NumFullEvents())
	require.Equal(t, uint32(0), d.NumRecvFlood(), "a dropped-for-exhaustion frame must not be counted as received")
}

func TestDispatcherRecvReleaseFreesPacket(t *testing.T) {
	d, mgr, _, radio := newTestDispatcher(fixedBudget{factor: 1.0})
	before := mgr.FreeCount()

	frame := make([]byte, 4)
	frame[0] = makeHeader(RouteFlood, PayloadAdvert)
	frame[1] = 0 // path_len
	radio.rxQueue = append(radio.rxQueue, frame)

	d.Loop()
	require.Equal(t, before, mgr.FreeCount(), "a released packet must return to the pool")
	require.Equal(t, uint32(1), d.NumRecvFlood())
}

func TestDispatcherRecvHoldDoesNotFreePacket(t *testing.T) {
	hooks := fixedBudget{factor: 1.0, recv: func(p *Packet) DispatcherAction { return Hold() }}
	d, mgr, _, radio := newTestDispatcher(hooks)
	before := mgr.FreeCount()

	frame := make([]byte, 4)
	frame[0] = makeHeader(RouteFlood, PayloadAdvert)
	radio.rxQueue = append(radio.rxQueue, frame)

	d.Loop()
	require.Equal(t, before-1, mgr.FreeCount(), "a held packet is not returned to the pool by the dispatcher")
}

func TestDispatcherRecvRetransmitQueuesOutbound(t *testing.T) {
	hooks := fixedBudget{factor: 1.0, recv: func(p *Packet) DispatcherAction { return Retransmit(2, 5) }}
	d, mgr, clock, radio := newTestDispatcher(hooks)

	frame := make([]byte, 4)
	frame[0] = makeHeader(RouteFlood, PayloadAdvert)
	radio.rxQueue = append(radio.rxQueue, frame)

	d.Loop()
	require.Equal(t, 0, mgr.OutboundCount(clock.Millis()), "retransmit delay has not elapsed yet")
	clock.Advance(5)
	require.Equal(t, 1, mgr.OutboundCount(clock.Millis()))
}

func TestDispatcherSendPacketRejectsOversizePath(t *testing.T) {
	d, mgr, _, _ := newTestDispatcher(fixedBudget{factor: 1.0})
	before := mgr.FreeCount()

	p, _ := d.ObtainPacket()
	p.Path = make([]byte, MaxPathSize+1)
	err := d.SendPacket(p, 0, 0)
	require.ErrorIs(t, err, ErrPacketTooLarge)
	require.Equal(t, before, mgr.FreeCount(), "a rejected send must free the packet back to the pool")
}

func TestDispatcherReleasePacketReturnsToPool(t *testing.T) {
	d, mgr, _, _ := newTestDispatcher(fixedBudget{factor: 1.0})
	before := mgr.FreeCount()

	p, err := d.ObtainPacket()
	require.NoError(t, err)
	require.Equal(t, before-1, mgr.FreeCount())

	d.ReleasePacket(p)
	require.Equal(t, before, mgr.FreeCount(), "ReleasePacket must return an unsent, built packet to the pool")
}

func TestDispatcherResetStatsClearsCountersOnly(t *testing.T) {
	d, _, clock, radio := newTestDispatcher(fixedBudget{factor: 2.0})
	radio.completeAfter = 1

	p, _ := d.ObtainPacket()
	p.Payload = []byte("hi")
	require.NoError(t, d.SendPacket(p, 0, 0))
	clock.Advance(1)
	d.Loop() // starts the send
	clock.Advance(1)
	d.Loop() // completes it and credits the counters
	require.EqualValues(t, 1, d.NumSentFlood())
	require.NotZero(t, d.TotalAirTime())

	d.ResetStats()
	require.Zero(t, d.NumSentFlood())
	require.Zero(t, d.NumSentDirect())
	require.Zero(t, d.NumRecvFlood())
	require.Zero(t, d.NumRecvDirect())
	require.Zero(t, d.NumFullEvents())
	require.Zero(t, d.TotalAirTime(), "reset_stats() clears total_air_time too, per §4.5")
}

func TestDispatcherListenBeforeTalkGate(t *testing.T) {
	d, _, clock, radio := newTestDispatcher(fixedBudget{factor: 1.0})
	radio.receiving = true

	p, _ := d.ObtainPacket()
	p.Payload = []byte("blocked by LBT")
	require.NoError(t, d.SendPacket(p, 0, 0))

	clock.Advance(1)
	d.Loop()
	require.Empty(t, radio.sent, "channel reported busy: dispatcher must not start a send")

	radio.receiving = false
	d.Loop()
	require.Len(t, radio.sent, 1)
}
