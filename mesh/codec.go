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
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrPacketTooShort is returned when the wire buffer ends before a
	// declared field can be read.
	ErrPacketTooShort = errors.New("mesh: packet too short")
	// ErrPathTooLong is returned when the declared path length exceeds MaxPathSize.
	ErrPathTooLong = errors.New("mesh: path length exceeds maximum")
	// ErrPayloadTooLong is returned when the residual payload exceeds MaxPacketPayload.
	ErrPayloadTooLong = errors.New("mesh: payload length exceeds maximum")
)

// writePacket encodes p into dst using the wire layout:
//
//	header(1) [tc0(2) tc1(2)]? path_len(1) path(path_len) payload(...)
//
// dst must have at least p.rawLen() bytes of capacity; writePacket returns
// the number of bytes written.
func writePacket(p *Packet, dst []byte) int {
	i := 0
	dst[i] = p.Header
	i++

	if p.HasTransportCodes() {
		binary.LittleEndian.PutUint16(dst[i:], p.TransportCodes[0])
		i += 2
		binary.LittleEndian.PutUint16(dst[i:], p.TransportCodes[1])
		i += 2
	}

	dst[i] = uint8(len(p.Path))
	i++
	i += copy(dst[i:], p.Path)
	i += copy(dst[i:], p.Payload)
	return i
}

// readPacket decodes a wire frame into a fresh Packet. The SNR field is not
// part of the wire format; the caller (the Dispatcher) fills it in from the
// radio's last-hop measurement.
func readPacket(src []byte) (*Packet, error) {
	p := &Packet{}
	if err := readPacketInto(p, src); err != nil {
		return nil, err
	}
	return p, nil
}

// readPacketInto decodes src into p, an already-allocated (and zeroed)
// Packet. The Dispatcher's receive path uses this instead of readPacket so
// every inbound frame is decoded into a pool-owned packet rather than a
// bare heap allocation, keeping PacketManager's free/queued/in-flight
// accounting exact (§8 pool-conservation invariant).
func readPacketInto(p *Packet, src []byte) error {
	if len(src) < 2 {
		return ErrPacketTooShort
	}

	i := 0
	p.Header = src[i]
	i++

	if p.HasTransportCodes() {
		if len(src) < i+4 {
			return ErrPacketTooShort
		}
		p.TransportCodes[0] = binary.LittleEndian.Uint16(src[i : i+2])
		i += 2
		p.TransportCodes[1] = binary.LittleEndian.Uint16(src[i : i+2])
		i += 2
	}

	if len(src) < i+1 {
		return ErrPacketTooShort
	}
	pathLen := int(src[i])
	i++
	if pathLen > MaxPathSize {
		return fmt.Errorf("%w: %d", ErrPathTooLong, pathLen)
	}
	if len(src) < i+pathLen {
		return ErrPacketTooShort
	}
	if pathLen > 0 {
		p.Path = append(p.Path, src[i:i+pathLen]...)
	}
	i += pathLen

	if i > len(src) {
		return ErrPacketTooShort
	}
	payloadLen := len(src) - i
	if payloadLen > MaxPacketPayload {
		return fmt.Errorf("%w: %d", ErrPayloadTooLong, payloadLen)
	}
	if payloadLen > 0 {
		p.Payload = append(p.Payload, src[i:]...)
	}

	return nil
}

// packetHash computes the SHA-256 digest of (payload_type, [path_len if
// TRACE], payload), truncated to MaxHashSize bytes. Route type, path
// contents and transport codes never feed the hash, so flood copies of the
// same logical packet taken by different paths hash identically.
func packetHash(p *Packet) [MaxHashSize]byte {
	h := sha256.New()
	t := p.PayloadType()
	h.Write([]byte{t})
	if t == PayloadTrace {
		var pl [2]byte
		binary.LittleEndian.PutUint16(pl[:], uint16(len(p.Path)))
		h.Write(pl[:])
	}
	h.Write(p.Payload)

	var out [MaxHashSize]byte
	sum := h.Sum(nil)
	copy(out[:], sum[:MaxHashSize])
	return out
}
