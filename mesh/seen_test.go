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

func hashOf(n byte) [MaxHashSize]byte {
	var h [MaxHashSize]byte
	for i := range h {
		h[i] = n + byte(i)
	}
	return h
}

func TestSeenTableMarkThenHas(t *testing.T) {
	st := NewSeenTable()
	h := hashOf(1)
	require.False(t, st.HasSeen(h))
	st.MarkSeen(h)
	require.True(t, st.HasSeen(h))
}

func TestSeenTableHasSeenPacketIsTestAndSet(t *testing.T) {
	st := NewSeenTable()
	p := &Packet{Header: makeHeader(RouteFlood, PayloadTxtMsg), Payload: []byte("dup")}

	require.False(t, st.HasSeenPacket(p))
	require.True(t, st.HasSeenPacket(p), "second observation of the same packet must be flagged seen")
}

func TestSeenTableFIFOEviction(t *testing.T) {
	st := NewSeenTable()
	first := hashOf(1)
	st.MarkSeen(first)

	// Fill the table with MaxPacketHashes distinct entries so the cyclic
	// buffer wraps exactly once and overwrites `first`'s slot.
	for i := 0; i < MaxPacketHashes; i++ {
		st.MarkSeen(hashOf(byte(100 + i)))
	}

	require.False(t, st.HasSeen(first), "oldest entry must be evicted once the table has wrapped")
}

func TestSeenTableDoesNotEvictWithinCapacity(t *testing.T) {
	st := NewSeenTable()
	first := hashOf(1)
	st.MarkSeen(first)

	for i := 0; i < MaxPacketHashes-1; i++ {
		st.MarkSeen(hashOf(byte(100 + i)))
	}

	require.True(t, st.HasSeen(first), "entry must survive until the buffer actually wraps past it")
}
