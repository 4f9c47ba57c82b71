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

import "container/list"

// Permission bits for a repeater/room Client, the low two bits of Permissions.
const (
	PermGuest     uint8 = 0
	PermReadOnly  uint8 = 1
	PermReadWrite uint8 = 2
	PermAdmin     uint8 = 3
	permRoleMask  uint8 = 0x03
)

// Client is a repeater-style remote peer record: identity, permission
// level, and (for room-role peers) a sync cursor into the room's message
// history. Unlike Contact, a Client's LastTimestamp/LastActivity are
// explicitly transient — a repeater re-admits a client fresh on restart.
type Client struct {
	ID            Identity
	Permissions   uint8
	Secret        [32]byte
	OutPath       []byte // nil = unknown
	LastTimestamp uint32 // by the client's own clock
	LastActivity  uint32 // by our clock

	// Room extras, meaningful only when this repeater hosts a room.
	SyncSince     uint32
	PendingAck    uint32
	AckTimeout    uint32
	PushFailures  uint8
}

// Role returns the low two permission bits.
func (c *Client) Role() uint8 { return c.Permissions & permRoleMask }

// IsAdmin reports whether this client holds the admin role.
func (c *Client) IsAdmin() bool { return c.Role() == PermAdmin }

// CanWrite reports whether this client may post, i.e. read-write or admin.
func (c *Client) CanWrite() bool {
	r := c.Role()
	return r == PermReadWrite || r == PermAdmin
}

// ClientTable is a bounded, LRU-evicted ACL for repeater-style nodes.
type ClientTable struct {
	capacity int
	order    *list.List
	byKey    map[[PubKeySize]byte]*list.Element
}

// NewClientTable returns an empty table bounded to capacity entries.
func NewClientTable(capacity int) *ClientTable {
	return &ClientTable{
		capacity: capacity,
		order:    list.New(),
		byKey:    make(map[[PubKeySize]byte]*list.Element),
	}
}

// PutClient inserts a new client with the given initial permissions, or
// returns the existing one untouched if already present.
func (t *ClientTable) PutClient(id Identity, initPerms uint8) *Client {
	if el, ok := t.byKey[id.PubKey]; ok {
		t.order.MoveToFront(el)
		return el.Value.(*Client)
	}

	c := &Client{ID: id, Permissions: initPerms}
	el := t.order.PushFront(c)
	t.byKey[id.PubKey] = el

	if t.order.Len() > t.capacity {
		back := t.order.Back()
		if back != nil {
			delete(t.byKey, back.Value.(*Client).ID.PubKey)
			t.order.Remove(back)
		}
	}
	return c
}

// GetClient returns the client matching the given public key, touching it
// to most-recently-used, or nil if not found.
func (t *ClientTable) GetClient(pub [PubKeySize]byte) *Client {
	el, ok := t.byKey[pub]
	if !ok {
		return nil
	}
	t.order.MoveToFront(el)
	return el.Value.(*Client)
}

// ApplyPermissions updates an existing client's permission bits, returning
// false if no client with that public key is present.
func (t *ClientTable) ApplyPermissions(pub [PubKeySize]byte, perms uint8) bool {
	c := t.GetClient(pub)
	if c == nil {
		return false
	}
	c.Permissions = perms
	return true
}

// Len reports how many clients are currently stored.
func (t *ClientTable) Len() int { return t.order.Len() }
