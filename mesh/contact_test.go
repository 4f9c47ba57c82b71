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

func TestContactLatFLonFDecodeFixedPoint(t *testing.T) {
	c := Contact{HasLatLon: true, Lat: 51501364, Lon: -125874}
	require.InDelta(t, 51.501364, c.LatF(), 1e-6)
	require.InDelta(t, -0.125874, c.LonF(), 1e-6)
}

func TestContactTableRemoveContactReportsMissing(t *testing.T) {
	tbl := NewContactTable(4)
	id := identityOf(0x10)
	tbl.AddContact(Contact{ID: id, Name: "carol"})

	require.True(t, tbl.RemoveContact(id.PubKey))
	require.False(t, tbl.RemoveContact(id.PubKey), "removing twice must report false")
	require.Equal(t, 0, tbl.Len())
}

func TestContactTableLookupByPubKeyPrefix(t *testing.T) {
	tbl := NewContactTable(4)
	id := identityOf(0x20)
	tbl.AddContact(Contact{ID: id, Name: "dave"})

	found := tbl.LookupByPubKeyPrefix(id.PubKey[:4])
	require.NotNil(t, found)
	require.Equal(t, "dave", found.Name)

	require.Nil(t, tbl.LookupByPubKeyPrefix([]byte{0xff, 0xff, 0xff, 0xff}))
}
