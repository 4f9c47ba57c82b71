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

// MeshBehavior is the single capability object an application supplies to
// parameterize a Mesh, the portable stand-in for the original firmware's
// subclass-and-override-virtual-methods extension point (BaseChatMesh,
// ClientACL-backed repeaters, and friends all become one concrete
// MeshBehavior implementation instead of a class hierarchy).
//
// Peers are addressed throughout by an opaque peerIdx, an index into
// whatever peer table the implementation keeps (typically a *ContactTable
// or *ClientTable) — the Mesh core never assumes a concrete table shape.
type MeshBehavior interface {
	// OnAdvertRecv fires once an ADVERT packet's signature has verified.
	OnAdvertRecv(pkt *Packet, remote Identity, timestamp uint32, userAppData []byte)

	// OnAnonDataRecv fires once an ANON_REQ packet decrypts successfully
	// against self's shared secret with the embedded ephemeral sender key.
	OnAnonDataRecv(pkt *Packet, subType uint8, ephemeral Identity, timestamp uint32, plain []byte)

	// SearchPeersByHash returns the indexes of every known peer whose
	// identity hash matches hash (the 1-byte source hash carried in the
	// datagram envelope at every Mesh call site). REQ/RESPONSE/TXT_MSG/PATH
	// receive tries each returned index in turn until one decrypts.
	SearchPeersByHash(hash []byte) []int

	// GetPeerIdentity returns the full identity of the peer at peerIdx.
	GetPeerIdentity(peerIdx int) Identity

	// GetPeerSharedSecret returns the cached ECDH secret for peerIdx.
	GetPeerSharedSecret(peerIdx int) [32]byte

	// GetPeerLastTimestamp and SetPeerLastTimestamp read/update the
	// replay-protection watermark for ordinary encrypted traffic
	// (REQ/RESPONSE/TXT_MSG) from this peer.
	GetPeerLastTimestamp(peerIdx int) uint32
	SetPeerLastTimestamp(peerIdx int, ts uint32)

	// GetPeerLastPathTimestamp and SetPeerLastPathTimestamp read/update a
	// separate replay watermark for PATH bodies specifically, per the
	// path-replay decision recorded for this port.
	GetPeerLastPathTimestamp(peerIdx int) uint32
	SetPeerLastPathTimestamp(peerIdx int, ts uint32)

	// OnPeerDataRecv fires once a REQ/RESPONSE/TXT_MSG body has decrypted
	// and passed its replay check. timestamp is the sender's own clock
	// value at send time, needed by TXT_MSG handlers to reproduce
	// ExpectedAckHash.
	OnPeerDataRecv(pkt *Packet, payloadType uint8, peerIdx int, secret [32]byte, timestamp uint32, plain []byte)

	// OnPeerPathRecv fires once a PATH body has decrypted and passed its
	// replay check. Returning true, when pkt arrived via flood, causes the
	// Mesh to automatically send a reciprocal direct PATH return.
	OnPeerPathRecv(pkt *Packet, peerIdx int, secret [32]byte, reversePath []byte, extraType uint8, extra []byte) bool

	// OnAckRecv fires for every received ACK packet, successful match or not.
	OnAckRecv(pkt *Packet, ackHash [MaxHashSize]byte)

	// SearchChannelsByHash returns every joined group channel whose wire
	// hash matches hash; GRP_TXT/GRP_DATA receive tries each in turn.
	SearchChannelsByHash(hash byte) []GroupChannel

	// OnGroupDataRecv fires once a GRP_TXT/GRP_DATA body decrypts
	// successfully against one of the returned channels.
	OnGroupDataRecv(pkt *Packet, payloadType uint8, channel GroupChannel, timestamp uint32, plain []byte)

	// OnControlRecv fires for CONTROL packets (DISCOVER_REQ/DISCOVER_RESP
	// and any future subtype); the default demo behavior ignores these.
	OnControlRecv(pkt *Packet, subType uint8, body []byte)

	// AllowPacketForward gates whether a flood-eligible packet may be
	// re-transmitted, e.g. to implement a repeater allow/deny policy.
	AllowPacketForward(pkt *Packet) bool

	// AirtimeBudgetFactor returns this node's duty-cycle multiplier; a
	// repeater typically returns a larger factor (e.g. 5.0) than a chat
	// client (the 2.0 default).
	AirtimeBudgetFactor() float32
}
