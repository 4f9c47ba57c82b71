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

package main

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/lx7m/meshnet/mesh"
	"github.com/lx7m/meshnet/mesh/mqttbridge"
)

// demoBehavior is the console demo's mesh.MeshBehavior: a simple chat client
// that tracks peers in a ContactTable, echoes a ACK for each received text
// message, and logs everything else it receives.
type demoBehavior struct {
	name     string
	self     *mesh.LocalIdentity
	contacts *mesh.ContactTable
	channels *mesh.ChannelTable
	mesh     *mesh.Mesh // set by NewNode after construction
	af       float32
	log      *zap.Logger
	out      io.Writer          // chat/advert output, shared with a Console when one drives this node
	bridge   *mqttbridge.Bridge // optional, nil if not configured

	mu         sync.Mutex
	peers      []*mesh.Contact // index = peerIdx handed out by this behavior
	lastTS     map[int]uint32
	lastPathTS map[int]uint32
}

var _ mesh.MeshBehavior = (*demoBehavior)(nil)

// peerIndex returns the stable peerIdx for c, registering it if new.
func (b *demoBehavior) peerIndex(c *mesh.Contact) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, p := range b.peers {
		if p.ID.PubKey == c.ID.PubKey {
			b.peers[i] = c
			return i
		}
	}
	b.peers = append(b.peers, c)
	return len(b.peers) - 1
}

func (b *demoBehavior) OnAdvertRecv(pkt *mesh.Packet, remote mesh.Identity, timestamp uint32, userAppData []byte) {
	data, _ := mesh.ParseAdvertData(userAppData)
	secret, err := b.self.SharedSecret(remote)
	if err != nil {
		b.log.Debug("advert shared secret derivation failed", zap.Error(err))
		return
	}

	c := b.contacts.AddContact(mesh.Contact{
		ID:                  remote,
		Name:                data.Name,
		Type:                data.Type,
		LastAdvertTimestamp: timestamp,
		Secret:              secret,
		HasLatLon:           data.HasLatLon,
		Lat:                 data.Lat,
		Lon:                 data.Lon,
	})
	idx := b.peerIndex(c)
	fmt.Fprintf(b.out, "[%s] advert from %s (peer #%d, type=%d, snr=%.1fdB)\n", b.name, data.Name, idx, data.Type, pkt.SNRdB())
	if b.bridge != nil {
		_ = b.bridge.PublishAdvert(remote.PubKey, data.Name, data.Type, data.HasLatLon, data.Lat, data.Lon, timestamp)
	}
}

func (b *demoBehavior) OnAnonDataRecv(pkt *mesh.Packet, subType uint8, ephemeral mesh.Identity, timestamp uint32, plain []byte) {
	b.log.Info("anon request received", zap.String("node", b.name), zap.Uint8("sub_type", subType), zap.Int("len", len(plain)))
}

func (b *demoBehavior) SearchPeersByHash(hash []byte) []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []int
	for i, p := range b.peers {
		if p.ID.Hash1() == hash[0] {
			out = append(out, i)
		}
	}
	return out
}

func (b *demoBehavior) GetPeerIdentity(peerIdx int) mesh.Identity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peers[peerIdx].ID
}

func (b *demoBehavior) GetPeerSharedSecret(peerIdx int) [32]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peers[peerIdx].Secret
}

func (b *demoBehavior) GetPeerLastTimestamp(peerIdx int) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastTS[peerIdx]
}

func (b *demoBehavior) SetPeerLastTimestamp(peerIdx int, ts uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastTS[peerIdx] = ts
}

func (b *demoBehavior) GetPeerLastPathTimestamp(peerIdx int) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastPathTS[peerIdx]
}

func (b *demoBehavior) SetPeerLastPathTimestamp(peerIdx int, ts uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastPathTS[peerIdx] = ts
}

func (b *demoBehavior) OnPeerDataRecv(pkt *mesh.Packet, payloadType uint8, peerIdx int, secret [32]byte, timestamp uint32, plain []byte) {
	if payloadType != mesh.PayloadTxtMsg || len(plain) < 1 {
		b.log.Info("peer datagram received", zap.String("node", b.name), zap.Uint8("type", payloadType))
		return
	}

	flags := plain[0]
	text := string(plain[1:])
	b.mu.Lock()
	contact := b.peers[peerIdx]
	b.mu.Unlock()

	fmt.Fprintf(b.out, "[%s] <%s> %s\n", b.name, contact.Name, text)
	if b.bridge != nil {
		_ = b.bridge.PublishText(contact.Name, text, timestamp)
	}

	ackHash := mesh.ExpectedAckHash(timestamp, flags, text, contact.ID.PubKey)
	var outPath []byte
	if contact.OutPath != nil {
		outPath = contact.OutPath
	}
	if err := b.mesh.SendAck(ackHash, outPath); err != nil {
		b.log.Warn("failed to send ack", zap.Error(err))
	}
}

func (b *demoBehavior) OnPeerPathRecv(pkt *mesh.Packet, peerIdx int, secret [32]byte, reversePath []byte, extraType uint8, extra []byte) bool {
	b.mu.Lock()
	contact := b.peers[peerIdx]
	b.mu.Unlock()
	contact.OutPath = append([]byte(nil), reversePath...)
	fmt.Fprintf(b.out, "[%s] learned path to %s: %v\n", b.name, contact.Name, reversePath)
	return false
}

func (b *demoBehavior) OnAckRecv(pkt *mesh.Packet, ackHash [mesh.MaxHashSize]byte) {
	p := b.contacts.ResolveAck(ackHash)
	if p == nil {
		return
	}
	fmt.Fprintf(b.out, "[%s] message to %s acknowledged\n", b.name, p.Contact.Name)
}

func (b *demoBehavior) SearchChannelsByHash(hash byte) []mesh.GroupChannel {
	return b.channels.SearchChannelsByHash(hash)
}

func (b *demoBehavior) OnGroupDataRecv(pkt *mesh.Packet, payloadType uint8, channel mesh.GroupChannel, timestamp uint32, plain []byte) {
	fmt.Fprintf(b.out, "[%s] [#%s] %s\n", b.name, channel.Name, string(plain))
	if b.bridge != nil {
		_ = b.bridge.PublishText("#"+channel.Name, string(plain), timestamp)
	}
}

func (b *demoBehavior) OnControlRecv(pkt *mesh.Packet, subType uint8, body []byte) {
	b.log.Debug("control packet received", zap.String("node", b.name), zap.Uint8("sub_type", subType))
}

func (b *demoBehavior) AllowPacketForward(pkt *mesh.Packet) bool { return true }

func (b *demoBehavior) AirtimeBudgetFactor() float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.af
}

// SetAirtimeBudgetFactor implements the console's `set AF=` command.
func (b *demoBehavior) SetAirtimeBudgetFactor(af float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.af = af
}
