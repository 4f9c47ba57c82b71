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

// MaxPacketHashes bounds the SeenTable's cyclic history.
const MaxPacketHashes = 64

// SeenTable records recently forwarded packet hashes so the mesh never
// re-floods the same logical packet twice. It is a fixed-size cyclic
// buffer, not a set: once full, the oldest entry is silently overwritten,
// so a packet can in principle be re-seen after MaxPacketHashes other
// distinct packets have passed through. That bound is intentional — it
// keeps the table's footprint and lookup cost constant regardless of
// mesh traffic volume.
type SeenTable struct {
	hashes  [MaxPacketHashes][MaxHashSize]byte
	nextIdx int
}

// NewSeenTable returns an empty SeenTable.
func NewSeenTable() *SeenTable {
	return &SeenTable{}
}

// HasSeen reports whether hash is already present in the table, without
// recording it. Useful when a caller needs to peek before deciding whether
// the mark should happen (e.g. Trace packets mark on first pass only).
func (t *SeenTable) HasSeen(hash [MaxHashSize]byte) bool {
	for i := range t.hashes {
		if t.hashes[i] == hash {
			return true
		}
	}
	return false
}

// MarkSeen inserts hash into the cyclic table unconditionally.
func (t *SeenTable) MarkSeen(hash [MaxHashSize]byte) {
	t.hashes[t.nextIdx] = hash
	t.nextIdx = (t.nextIdx + 1) % MaxPacketHashes
}

// HasSeenPacket reports whether p's packet hash has already passed through
// this table, recording it if not. This is the combined test-and-set most
// callers want: a single query per received packet that both answers the
// duplicate-suppression question and updates the table for the next one.
func (t *SeenTable) HasSeenPacket(p *Packet) bool {
	hash := packetHash(p)
	if t.HasSeen(hash) {
		return true
	}
	t.MarkSeen(hash)
	return false
}
