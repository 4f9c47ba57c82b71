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

func identityOf(b byte) Identity {
	var pub [PubKeySize]byte
	for i := range pub {
		pub[i] = b + byte(i)
	}
	return NewIdentity(pub)
}

func TestClientRoleAndPermissionChecks(t *testing.T) {
	c := &Client{Permissions: PermReadWrite}
	require.Equal(t, PermReadWrite, c.Role())
	require.True(t, c.CanWrite())
	require.False(t, c.IsAdmin())

	c.Permissions = PermAdmin
	require.True(t, c.IsAdmin())
	require.True(t, c.CanWrite())

	c.Permissions = PermGuest
	require.False(t, c.CanWrite())
	require.False(t, c.IsAdmin())

	c.Permissions = PermReadOnly
	require.False(t, c.CanWrite())
}

func TestClientTablePutGetRoundTrip(t *testing.T) {
	ct := NewClientTable(4)
	id := identityOf(1)

	c := ct.PutClient(id, PermReadWrite)
	require.Equal(t, id, c.ID)
	require.Equal(t, PermReadWrite, c.Role())
	require.Equal(t, 1, ct.Len())

	got := ct.GetClient(id.PubKey)
	require.Same(t, c, got)
}

func TestClientTablePutClientIsIdempotentOnExistingKey(t *testing.T) {
	ct := NewClientTable(4)
	id := identityOf(2)

	first := ct.PutClient(id, PermGuest)
	first.LastActivity = 42

	again := ct.PutClient(id, PermAdmin)
	require.Same(t, first, again)
	require.Equal(t, PermGuest, again.Role(), "PutClient on an existing key must not overwrite it")
	require.Equal(t, uint32(42), again.LastActivity)
}

func TestClientTableGetClientMissingReturnsNil(t *testing.T) {
	ct := NewClientTable(4)
	require.Nil(t, ct.GetClient(identityOf(9).PubKey))
}

func TestClientTableApplyPermissions(t *testing.T) {
	ct := NewClientTable(4)
	id := identityOf(3)
	ct.PutClient(id, PermGuest)

	require.True(t, ct.ApplyPermissions(id.PubKey, PermAdmin))
	require.Equal(t, PermAdmin, ct.GetClient(id.PubKey).Role())

	require.False(t, ct.ApplyPermissions(identityOf(200).PubKey, PermAdmin))
}

func TestClientTableLRUEviction(t *testing.T) {
	ct := NewClientTable(2)
	a, b := identityOf(1), identityOf(2)
	ct.PutClient(a, PermGuest)
	ct.PutClient(b, PermGuest)

	// Touch a so it becomes most-recently-used, leaving b as the eviction
	// candidate when a third client is admitted.
	ct.GetClient(a.PubKey)

	c := identityOf(3)
	ct.PutClient(c, PermGuest)

	require.Equal(t, 2, ct.Len())
	require.NotNil(t, ct.GetClient(a.PubKey))
	require.NotNil(t, ct.GetClient(c.PubKey))
	require.Nil(t, ct.GetClient(b.PubKey), "least-recently-used client must be evicted")
}
