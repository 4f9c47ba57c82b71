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

func encodeDecode(t *testing.T, p *Packet) *Packet {
	t.Helper()
	buf := make([]byte, p.rawLen())
	n := writePacket(p, buf)
	require.Equal(t, p.rawLen(), n)

	got, err := readPacket(buf[:n])
	require.NoError(t, err)
	return got
}

func TestCodecRoundTripFlood(t *testing.T) {
	p := &Packet{
		Header:  makeHeader(RouteFlood, PayloadTxtMsg),
		Path:    []byte{1, 2, 3},
		Payload: []byte("hello mesh"),
	}
	got := encodeDecode(t, p)
	require.Equal(t, p.Header, got.Header)
	require.Equal(t, p.Path, got.Path)
	require.Equal(t, p.Payload, got.Payload)
	require.Equal(t, [2]uint16{0, 0}, got.TransportCodes, "transport codes must be zeroed for a non-transport route")
}

func TestCodecRoundTripTransportDirect(t *testing.T) {
	p := &Packet{
		Header:         makeHeader(RouteTransportDirect, PayloadResponse),
		TransportCodes: [2]uint16{0xBEEF, 0xCAFE},
		Path:           []byte{9, 8, 7, 6},
		Payload:        []byte{0x01, 0x02, 0x03},
	}
	got := encodeDecode(t, p)
	require.Equal(t, p.TransportCodes, got.TransportCodes, "transport codes must round-trip for a transport route")
	require.Equal(t, p.Path, got.Path)
	require.Equal(t, p.Payload, got.Payload)
}

func TestCodecRoundTripEmptyPathAndPayload(t *testing.T) {
	p := &Packet{Header: makeHeader(RouteDirect, PayloadAck)}
	got := encodeDecode(t, p)
	require.Empty(t, got.Path)
	require.Empty(t, got.Payload)
}

func TestCodecRoundTripMaxPath(t *testing.T) {
	path := make([]byte, MaxPathSize)
	for i := range path {
		path[i] = byte(i)
	}
	p := &Packet{Header: makeHeader(RouteFlood, PayloadTrace), Path: path, Payload: []byte{0xAA}}
	got := encodeDecode(t, p)
	require.Equal(t, path, got.Path)
}

func TestReadPacketRejectsOversizePath(t *testing.T) {
	buf := make([]byte, 2+MaxPathSize+1)
	buf[0] = makeHeader(RouteFlood, PayloadTxtMsg)
	buf[1] = MaxPathSize + 1
	_, err := readPacket(buf)
	require.ErrorIs(t, err, ErrPathTooLong)
}

func TestReadPacketRejectsTruncatedPath(t *testing.T) {
	buf := []byte{makeHeader(RouteFlood, PayloadTxtMsg), 5, 1, 2} // declares 5 path bytes, only 2 present
	_, err := readPacket(buf)
	require.ErrorIs(t, err, ErrPacketTooShort)
}

func TestReadPacketRejectsOversizePayload(t *testing.T) {
	buf := make([]byte, 2+MaxPacketPayload+1)
	buf[0] = makeHeader(RouteFlood, PayloadTxtMsg)
	buf[1] = 0
	_, err := readPacket(buf)
	require.ErrorIs(t, err, ErrPayloadTooLong)
}

func TestReadPacketTooShortForHeader(t *testing.T) {
	_, err := readPacket([]byte{0x00})
	require.ErrorIs(t, err, ErrPacketTooShort)
}

func TestReadPacketTooShortForTransportCodes(t *testing.T) {
	buf := []byte{makeHeader(RouteTransportFlood, PayloadTxtMsg), 0x01, 0x02}
	_, err := readPacket(buf)
	require.ErrorIs(t, err, ErrPacketTooShort)
}

// TestHashStabilityIgnoresRouteAndPath covers the invariant that two flood
// copies of the same logical packet, taken over different paths, hash
// identically: route type, path contents and transport codes never feed the
// packet hash, only payload type, payload, and (for TRACE) path length.
func TestHashStabilityIgnoresRouteAndPath(t *testing.T) {
	base := &Packet{
		Header:  makeHeader(RouteFlood, PayloadTxtMsg),
		Path:    []byte{1, 2, 3},
		Payload: []byte("identical payload"),
	}
	variant := &Packet{
		Header:         makeHeader(RouteTransportDirect, PayloadTxtMsg),
		TransportCodes: [2]uint16{1, 2},
		Path:           []byte{9, 9, 9, 9, 9},
		Payload:        []byte("identical payload"),
	}
	require.Equal(t, packetHash(base), packetHash(variant))
}

func TestHashStabilityChangesWithPayload(t *testing.T) {
	a := &Packet{Header: makeHeader(RouteFlood, PayloadTxtMsg), Payload: []byte("a")}
	b := &Packet{Header: makeHeader(RouteFlood, PayloadTxtMsg), Payload: []byte("b")}
	require.NotEqual(t, packetHash(a), packetHash(b))
}

func TestHashStabilityChangesWithPayloadType(t *testing.T) {
	a := &Packet{Header: makeHeader(RouteFlood, PayloadTxtMsg), Payload: []byte("same")}
	b := &Packet{Header: makeHeader(RouteFlood, PayloadResponse), Payload: []byte("same")}
	require.NotEqual(t, packetHash(a), packetHash(b))
}

// TestHashStabilityTraceDependsOnPathLen covers the one documented
// exception: TRACE packets fold path_len into the hash so a re-observed
// trace with a different hop count is treated as a new packet.
func TestHashStabilityTraceDependsOnPathLen(t *testing.T) {
	short := &Packet{Header: makeHeader(RouteFlood, PayloadTrace), Path: []byte{1}, Payload: []byte("trace")}
	long := &Packet{Header: makeHeader(RouteFlood, PayloadTrace), Path: []byte{1, 2, 3}, Payload: []byte("trace")}
	require.NotEqual(t, packetHash(short), packetHash(long))
}

func TestDoNotRetransmitSentinelStillParses(t *testing.T) {
	p := &Packet{Header: HeaderDoNotRetransmit, Payload: []byte("x")}
	got := encodeDecode(t, p)
	require.True(t, got.IsMarkedDoNotRetransmit())
}
