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

// MillisecondClock abstracts the local monotonic clock the Dispatcher times
// transmissions and radio-silence windows against. A real node backs this
// with the MCU's millisecond tick; tests back it with a manually advanced
// fake so timing scenarios are deterministic.
type MillisecondClock interface {
	Millis() uint32
}

// RTCClock abstracts wall-clock time, used for advert/message timestamps
// and replay-window checks. Unlike MillisecondClock it is allowed to be
// unset or wrong on a node with no RTC; callers that need a trustworthy
// timestamp should cross-check against received peer timestamps.
type RTCClock interface {
	CurrentTime() uint32
}

// RNG abstracts the random byte source used for identity generation and
// jittered scheduling delays.
type RNG interface {
	RandomByte() uint8
	RandomBytes(dst []byte)
}

// Radio abstracts the physical LoRa transceiver. Implementations are
// expected to be non-blocking: RecvRaw and the Is*/Get* queries are polled
// once per Dispatcher.Loop iteration, and StartSendRaw only begins a send,
// with IsSendComplete polled afterwards.
type Radio interface {
	// Begin initializes the radio hardware. Called once from Dispatcher.Begin.
	Begin() error

	// RecvRaw returns a complete received frame if one is available, or nil
	// if none is currently pending.
	RecvRaw() []byte

	// EstAirtimeMillis estimates the on-air transmit time in milliseconds
	// for a frame of lenBytes, given the radio's configured spreading
	// factor, bandwidth and coding rate.
	EstAirtimeMillis(lenBytes int) uint32

	// PacketScore rates a received packet's link quality given its SNR and
	// length; the Dispatcher computes it for each received frame and
	// includes it in its receive debug log.
	PacketScore(snr float32, packetLen int) float32

	// StartSendRaw begins transmitting frame without blocking for completion.
	StartSendRaw(frame []byte) error

	// IsSendComplete reports whether the transmission begun by StartSendRaw
	// has finished.
	IsSendComplete() bool

	// OnSendFinished releases any radio-side resources held for the just
	// completed transmission (e.g. switching back to receive mode).
	OnSendFinished()

	// IsReceiving reports whether the radio is currently mid-receive of an
	// incoming frame; used as the listen-before-talk gate.
	IsReceiving() bool

	// LastSNR and LastRSSI report the link-quality measurements of the most
	// recently received frame, in dB.
	LastSNR() float32
	LastRSSI() float32
}
