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

package serialradio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeFrame(payload []byte, snrTenths, rssi int16) []byte {
	out := []byte{frameMarkerIn, byte(len(payload))}
	out = append(out, payload...)
	meta := make([]byte, metaSize)
	binary.LittleEndian.PutUint16(meta[0:2], uint16(snrTenths))
	binary.LittleEndian.PutUint16(meta[2:4], uint16(rssi))
	return append(out, meta...)
}

func feedAll(t *testing.T, dec *frameDecoder, wire []byte) (payload, meta []byte) {
	t.Helper()
	for _, b := range wire {
		if p, m, ok := dec.feed(b); ok {
			return p, m
		}
	}
	return nil, nil
}

func TestFrameDecoderRoundTrip(t *testing.T) {
	var dec frameDecoder
	payload, meta := feedAll(t, &dec, encodeFrame([]byte{0x01, 0x02, 0x03}, 75, -94))
	require.Equal(t, []byte{0x01, 0x02, 0x03}, payload)
	require.Equal(t, int16(75), int16(binary.LittleEndian.Uint16(meta[0:2])))
	require.Equal(t, int16(-94), int16(binary.LittleEndian.Uint16(meta[2:4])))
}

func TestFrameDecoderIgnoresNoiseBeforeMarker(t *testing.T) {
	var dec frameDecoder
	wire := append([]byte{0x00, 0xFF, 0x11}, encodeFrame([]byte{0xAB}, 10, -50)...)
	payload, _ := feedAll(t, &dec, wire)
	require.Equal(t, []byte{0xAB}, payload)
}

func TestFrameDecoderEmptyPayload(t *testing.T) {
	var dec frameDecoder
	payload, meta := feedAll(t, &dec, encodeFrame(nil, 0, 0))
	require.Nil(t, payload)
	require.Nil(t, meta)
}

func TestFrameDecoderResetsAfterEachFrame(t *testing.T) {
	var dec frameDecoder
	first := encodeFrame([]byte{0x01}, 1, 1)
	second := encodeFrame([]byte{0x02, 0x03}, 2, 2)

	p1, _ := feedAll(t, &dec, first)
	require.Equal(t, []byte{0x01}, p1)

	p2, _ := feedAll(t, &dec, second)
	require.Equal(t, []byte{0x02, 0x03}, p2)
}

func TestRadioEstAirtimeMillisDefaultsSanely(t *testing.T) {
	r := &Radio{BytesPerMillis: 0.05}
	require.Equal(t, uint32(200), r.EstAirtimeMillis(10))
}

func TestRadioEstAirtimeMillisFallsBackWhenUnset(t *testing.T) {
	r := &Radio{}
	require.Equal(t, uint32(10), r.EstAirtimeMillis(10))
}

func TestRadioPacketScoreFavorsHigherSNRAndShorterFrames(t *testing.T) {
	r := &Radio{}
	better := r.PacketScore(10, 20)
	worse := r.PacketScore(4, 200)
	require.Greater(t, better, worse)
}
