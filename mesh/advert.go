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
	"encoding/binary"
	"fmt"
	"time"
)

// Advert node-type tags, the low 4 bits of the advert flag byte.
const (
	AdvertTypeNone     uint8 = 0
	AdvertTypeChat     uint8 = 1
	AdvertTypeRepeater uint8 = 2
	AdvertTypeRoom     uint8 = 3
	AdvertTypeSensor   uint8 = 4
)

const (
	advFlagTypeMask   = 0x0F
	advFlagLatLon     = 0x10
	advFlagFeat1      = 0x20
	advFlagFeat2      = 0x40
	advFlagName       = 0x80
	advLatLonScale    = 1e6
	// MaxAdvertDataSize bounds the self-describing advert app-data body:
	// flag(1) + lat/lon(8) + feat1(2) + feat2(2) + name, leaving headroom
	// within the signed advert payload (sig(64) + pub_key(32) + ts(4) + this).
	MaxAdvertDataSize = 84
)

// AdvertData is the decoded form of an advertisement's self-describing
// application data, independent of the outer sig/pub_key/timestamp wrapper
// that CreateAdvert/handleAdvert in mesh.go handle.
type AdvertData struct {
	Type      uint8
	HasLatLon bool
	Lat       int32 // 1e-6 degree fixed point
	Lon       int32
	Feat1     uint16
	Feat2     uint16
	Name      string
}

// LatF and LonF convert the fixed-point coordinates to floating degrees.
func (a AdvertData) LatF() float64 { return float64(a.Lat) / advLatLonScale }
func (a AdvertData) LonF() float64 { return float64(a.Lon) / advLatLonScale }

// EncodeAdvertData serializes a into its wire form. The returned slice is
// never longer than MaxAdvertDataSize; a Name longer than the remaining
// budget is silently truncated, mirroring the original firmware's
// fixed-buffer copy loop.
func EncodeAdvertData(a AdvertData) []byte {
	buf := make([]byte, MaxAdvertDataSize)
	buf[0] = a.Type & advFlagTypeMask
	i := 1

	if a.HasLatLon {
		buf[0] |= advFlagLatLon
		binary.LittleEndian.PutUint32(buf[i:], uint32(a.Lat))
		i += 4
		binary.LittleEndian.PutUint32(buf[i:], uint32(a.Lon))
		i += 4
	}
	if a.Feat1 != 0 {
		buf[0] |= advFlagFeat1
		binary.LittleEndian.PutUint16(buf[i:], a.Feat1)
		i += 2
	}
	if a.Feat2 != 0 {
		buf[0] |= advFlagFeat2
		binary.LittleEndian.PutUint16(buf[i:], a.Feat2)
		i += 2
	}
	if a.Name != "" {
		buf[0] |= advFlagName
		name := []byte(a.Name)
		for _, c := range name {
			if i >= MaxAdvertDataSize {
				break
			}
			buf[i] = c
			i++
		}
	}
	return buf[:i]
}

// ParseAdvertData decodes an advert app-data body. It returns ok=false only
// when appData is too short to even hold the flag byte; once the flag byte
// is read, every subsequent field is optional per its bit, so a truncated
// tail is simply treated as "field absent" rather than an error.
func ParseAdvertData(appData []byte) (AdvertData, bool) {
	if len(appData) < 1 {
		return AdvertData{}, false
	}

	var a AdvertData
	flags := appData[0]
	a.Type = flags & advFlagTypeMask
	i := 1

	if flags&advFlagLatLon != 0 && len(appData) >= i+8 {
		a.HasLatLon = true
		a.Lat = int32(binary.LittleEndian.Uint32(appData[i:]))
		i += 4
		a.Lon = int32(binary.LittleEndian.Uint32(appData[i:]))
		i += 4
	}
	if flags&advFlagFeat1 != 0 && len(appData) >= i+2 {
		a.Feat1 = binary.LittleEndian.Uint16(appData[i:])
		i += 2
	}
	if flags&advFlagFeat2 != 0 && len(appData) >= i+2 {
		a.Feat2 = binary.LittleEndian.Uint16(appData[i:])
		i += 2
	}
	if flags&advFlagName != 0 && len(appData) > i {
		a.Name = string(appData[i:])
	}
	return a, true
}

// FormatRelativeAge renders a duration the way the original firmware's
// advert-age helper does, for use in CLI listings (cmd/meshsim's `contacts`
// command): "N secs ago", "N mins from now", and so on.
func FormatRelativeAge(d time.Duration) string {
	suffix := " ago"
	secs := int64(d / time.Second)
	if secs < 0 {
		suffix = " from now"
		secs = -secs
	}

	switch {
	case secs < 60:
		return fmt.Sprintf("%d secs%s", secs, suffix)
	case secs < 3600:
		return fmt.Sprintf("%d mins%s", secs/60, suffix)
	case secs < 86400:
		return fmt.Sprintf("%d hours%s", secs/3600, suffix)
	default:
		return fmt.Sprintf("%d days%s", secs/86400, suffix)
	}
}
