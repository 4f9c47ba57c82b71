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

// Packet header bit layout: version(2) | payload_type(4) | route_type(2), MSB first.
const (
	phRouteMask = 0x03
	phTypeShift = 2
	phTypeMask  = 0x0F
	phVerShift  = 6
	phVerMask   = 0x03
)

// Route types (header bits 1..0).
const (
	RouteTransportFlood  uint8 = 0x00
	RouteFlood           uint8 = 0x01
	RouteDirect          uint8 = 0x02
	RouteTransportDirect uint8 = 0x03
)

// Payload types (header bits 5..2).
const (
	PayloadReq       uint8 = 0
	PayloadResponse  uint8 = 1
	PayloadTxtMsg    uint8 = 2
	PayloadAck       uint8 = 3
	PayloadAdvert    uint8 = 4
	PayloadGrpTxt    uint8 = 5
	PayloadGrpData   uint8 = 6
	PayloadAnonReq   uint8 = 7
	PayloadPath      uint8 = 8
	PayloadTrace     uint8 = 9
	PayloadControl   uint8 = 11
	PayloadRawCustom uint8 = 15
)

// Control payload subtypes. Mesh.handleControl hands the whole first byte
// of a CONTROL payload to MeshBehavior.OnControlRecv as subType, unshifted.
// Additive over spec.md; see SPEC_FULL.md §4.
const (
	ControlDiscoverReq  uint8 = 0x08
	ControlDiscoverResp uint8 = 0x09
)

const (
	// MaxPathSize is the maximum number of hop bytes a path may carry.
	MaxPathSize = 64
	// MaxPacketPayload is the maximum application payload size in bytes.
	MaxPacketPayload = 184
	// MaxHashSize is the truncated packet/ACK hash length.
	MaxHashSize = 4
	// MTU bounds the whole wire frame (header + transport codes + path + payload).
	MTU = 255

	// HeaderDoNotRetransmit is the sentinel header value meaning "never forward this again".
	HeaderDoNotRetransmit uint8 = 0xFF
)

// Packet is the fundamental transmission unit of the mesh.
type Packet struct {
	Header         uint8
	TransportCodes [2]uint16
	Path           []byte
	Payload        []byte
	SNR            int8 // populated by the dispatcher on receive; quarter-dB units
}

// RouteType returns the 2-bit route type encoded in Header.
func (p *Packet) RouteType() uint8 { return p.Header & phRouteMask }

// PayloadType returns the 4-bit payload type encoded in Header.
func (p *Packet) PayloadType() uint8 { return (p.Header >> phTypeShift) & phTypeMask }

// PayloadVersion returns the 2-bit payload version encoded in Header.
func (p *Packet) PayloadVersion() uint8 { return (p.Header >> phVerShift) & phVerMask }

// IsFlood reports whether the packet uses one of the flood route types.
func (p *Packet) IsFlood() bool {
	rt := p.RouteType()
	return rt == RouteFlood || rt == RouteTransportFlood
}

// IsDirect reports whether the packet uses one of the direct route types.
func (p *Packet) IsDirect() bool {
	rt := p.RouteType()
	return rt == RouteDirect || rt == RouteTransportDirect
}

// HasTransportCodes reports whether the route type carries the two transport codes.
func (p *Packet) HasTransportCodes() bool {
	rt := p.RouteType()
	return rt == RouteTransportFlood || rt == RouteTransportDirect
}

// MarkDoNotRetransmit sets the sentinel header value that forbids any further forwarding.
func (p *Packet) MarkDoNotRetransmit() { p.Header = HeaderDoNotRetransmit }

// IsMarkedDoNotRetransmit reports whether the packet carries the do-not-retransmit sentinel.
func (p *Packet) IsMarkedDoNotRetransmit() bool { return p.Header == HeaderDoNotRetransmit }

// SNRdB returns the last-hop signal-to-noise ratio in dB.
func (p *Packet) SNRdB() float32 { return float32(p.SNR) / 4.0 }

// rawLen returns the wire-encoded length of the packet.
func (p *Packet) rawLen() int {
	n := 2 + len(p.Path) + len(p.Payload)
	if p.HasTransportCodes() {
		n += 4
	}
	return n
}

// reset clears a packet to its post-alloc zero state, as required by PacketManager.alloc.
func (p *Packet) reset() {
	p.Header = 0
	p.TransportCodes = [2]uint16{}
	p.Path = p.Path[:0]
	p.Payload = p.Payload[:0]
	p.SNR = 0
}

// clone returns a deep copy of the packet, used when the same logical packet
// needs to be queued for both local delivery and re-transmission.
func (p *Packet) clone() *Packet {
	c := &Packet{Header: p.Header, TransportCodes: p.TransportCodes, SNR: p.SNR}
	if len(p.Path) > 0 {
		c.Path = append([]byte(nil), p.Path...)
	}
	if len(p.Payload) > 0 {
		c.Payload = append([]byte(nil), p.Payload...)
	}
	return c
}

// PayloadTypeName returns a human-readable label for a payload type, for logging.
func PayloadTypeName(t uint8) string {
	switch t {
	case PayloadReq:
		return "REQ"
	case PayloadResponse:
		return "RESPONSE"
	case PayloadTxtMsg:
		return "TXT_MSG"
	case PayloadAck:
		return "ACK"
	case PayloadAdvert:
		return "ADVERT"
	case PayloadGrpTxt:
		return "GRP_TXT"
	case PayloadGrpData:
		return "GRP_DATA"
	case PayloadAnonReq:
		return "ANON_REQ"
	case PayloadPath:
		return "PATH"
	case PayloadTrace:
		return "TRACE"
	case PayloadControl:
		return "CONTROL"
	case PayloadRawCustom:
		return "RAW_CUSTOM"
	default:
		return "UNKNOWN"
	}
}

// RouteTypeName returns a human-readable label for a route type, for logging.
func RouteTypeName(t uint8) string {
	switch t {
	case RouteTransportFlood:
		return "TRANSPORT_FLOOD"
	case RouteFlood:
		return "FLOOD"
	case RouteDirect:
		return "DIRECT"
	case RouteTransportDirect:
		return "TRANSPORT_DIRECT"
	default:
		return "UNKNOWN"
	}
}
