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
	"bytes"
	"container/list"
)

// Contact is a chat-style peer record: the remote identity plus everything
// learned about it from advertisements and path-returns. A Contact is
// created on first observed advertisement and mutated in place thereafter;
// it is never destroyed except by explicit RemoveContact or LRU eviction.
type Contact struct {
	ID                  Identity
	Name                string // ≤ 31 bytes, enforced on assignment by the table
	Type                uint8
	LastAdvertTimestamp uint32 // by the contact's own clock
	Secret              [32]byte
	HasLatLon           bool
	Lat, Lon            int32
	// OutPath is the cached direct route from self to this contact. nil
	// means "unknown" (fall back to flood); a non-nil slice (possibly
	// empty) means a learned direct path, next-hop first.
	OutPath      []byte
	LastActivity uint32 // by our clock
}

// LatF and LonF decode Lat/Lon back to floating-point degrees, using the
// same 1e-6 fixed-point scale as AdvertData.LatF/LonF since a Contact's
// coordinates are copied verbatim from the advertisement that created it.
func (c Contact) LatF() float64 { return float64(c.Lat) / advLatLonScale }
func (c Contact) LonF() float64 { return float64(c.Lon) / advLatLonScale }

// PendingAck tracks one outstanding text-message send awaiting its ACK.
// Unlike the original firmware's single txt_send_timeout field, this port
// keeps one entry per in-flight send since several contacts may have
// messages outstanding at once — nothing in the protocol forbids it.
type PendingAck struct {
	ExpectedAck [MaxHashSize]byte
	Deadline    uint32 // millis, per Dispatcher/MillisecondClock
	Contact     *Contact
}

// ContactTable is a bounded, LRU-evicted set of Contacts plus the pending
// ACK deadlines associated with sends to them.
type ContactTable struct {
	capacity int
	order    *list.List // front = most recently used
	byKey    map[[PubKeySize]byte]*list.Element
	pending  map[[MaxHashSize]byte]*PendingAck
}

// NewContactTable returns an empty table that evicts its least-recently-used
// entry once more than capacity Contacts are held.
func NewContactTable(capacity int) *ContactTable {
	return &ContactTable{
		capacity: capacity,
		order:    list.New(),
		byKey:    make(map[[PubKeySize]byte]*list.Element),
		pending:  make(map[[MaxHashSize]byte]*PendingAck),
	}
}

// AddContact inserts or replaces a contact, touching it to most-recently-used.
// A Name longer than 31 bytes is truncated, matching the fixed on-wire buffer
// this table's wire ancestor used.
func (t *ContactTable) AddContact(c Contact) *Contact {
	if len(c.Name) > 31 {
		c.Name = c.Name[:31]
	}
	if el, ok := t.byKey[c.ID.PubKey]; ok {
		*el.Value.(*Contact) = c
		t.order.MoveToFront(el)
		return el.Value.(*Contact)
	}

	stored := &c
	el := t.order.PushFront(stored)
	t.byKey[c.ID.PubKey] = el

	if t.order.Len() > t.capacity {
		t.evictOldest()
	}
	return stored
}

func (t *ContactTable) evictOldest() {
	back := t.order.Back()
	if back == nil {
		return
	}
	oldest := back.Value.(*Contact)
	delete(t.byKey, oldest.ID.PubKey)
	t.order.Remove(back)
}

// RemoveContact deletes a contact by public key, returning true if one existed.
func (t *ContactTable) RemoveContact(pub [PubKeySize]byte) bool {
	el, ok := t.byKey[pub]
	if !ok {
		return false
	}
	delete(t.byKey, pub)
	t.order.Remove(el)
	return true
}

// LookupByPubKeyPrefix finds the contact whose public key starts with
// prefix, touching it to most-recently-used on a hit.
func (t *ContactTable) LookupByPubKeyPrefix(prefix []byte) *Contact {
	for el := t.order.Front(); el != nil; el = el.Next() {
		c := el.Value.(*Contact)
		if bytes.HasPrefix(c.ID.PubKey[:], prefix) {
			t.order.MoveToFront(el)
			return c
		}
	}
	return nil
}

// SearchByPrefix returns every contact whose Name starts with prefix, most-
// recently-used first. Used by the chat CLI's contact lookup command.
func (t *ContactTable) SearchByPrefix(namePrefix string) []*Contact {
	var out []*Contact
	for el := t.order.Front(); el != nil; el = el.Next() {
		c := el.Value.(*Contact)
		if len(c.Name) >= len(namePrefix) && c.Name[:len(namePrefix)] == namePrefix {
			out = append(out, c)
		}
	}
	return out
}

// Len reports how many contacts are currently stored.
func (t *ContactTable) Len() int { return t.order.Len() }

// TrackPendingAck registers a deadline for an expected ACK hash, enabling
// ResolveAck/ExpirePendingAcks to later close out or time out the send.
func (t *ContactTable) TrackPendingAck(p *PendingAck) {
	t.pending[p.ExpectedAck] = p
}

// ResolveAck looks up and removes the pending send matching hash, returning
// it if found. A second identical ACK is a no-op (idempotent), since the
// first call already removed the entry.
func (t *ContactTable) ResolveAck(hash [MaxHashSize]byte) *PendingAck {
	p, ok := t.pending[hash]
	if !ok {
		return nil
	}
	delete(t.pending, hash)
	return p
}

// ExpirePendingAcks removes and returns every pending send whose deadline
// has passed now, for the caller to fire on_send_timeout against.
func (t *ContactTable) ExpirePendingAcks(now uint32) []*PendingAck {
	var expired []*PendingAck
	for hash, p := range t.pending {
		if int32(now-p.Deadline) >= 0 {
			expired = append(expired, p)
			delete(t.pending, hash)
		}
	}
	return expired
}
