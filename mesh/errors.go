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

import "errors"

// Sentinel errors returned by the local API surface (ObtainPacket,
// SendPacket, the Mesh builders). None of these ever cross the radio
// boundary: a malformed or unauthenticated packet received from the air is
// dropped silently (see SeenTable/Mesh receive path), never reported back
// to the sender. That silence is deliberate — acknowledging a decode or
// auth failure over the air would hand an attacker an oracle.
var (
	// ErrPoolExhausted is returned when PacketManager.Alloc has no free
	// packet to hand out.
	ErrPoolExhausted = errors.New("mesh: packet pool exhausted")

	// ErrPacketTooLarge is returned by Dispatcher.SendPacket when a
	// caller-constructed packet's path or payload exceeds the wire limits.
	ErrPacketTooLarge = errors.New("mesh: packet exceeds path or payload limit")

	// ErrUnknownContact is returned when a send is requested for a name or
	// key the Contact table has no entry for.
	ErrUnknownContact = errors.New("mesh: unknown contact")

	// ErrAuthFailed is logged by the Mesh receive path when an encrypted
	// payload fails its MAC check; the packet is dropped silently, the error
	// never appears in logs above Debug level and is never relayed back
	// over the air.
	ErrAuthFailed = errors.New("mesh: authentication failed")

	// ErrReplay is logged at Debug when a PATH, REQ, RESPONSE or TXT_MSG
	// body's timestamp does not strictly exceed the sender's last recorded
	// timestamp and the body is dropped.
	ErrReplay = errors.New("mesh: replayed timestamp")

	// ErrUnknownChannel is logged at Debug when a GRP_TXT/GRP_DATA packet's
	// channel hash matches no configured GroupChannel.
	ErrUnknownChannel = errors.New("mesh: unknown channel")
)
