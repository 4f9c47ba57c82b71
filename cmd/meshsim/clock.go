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
	"crypto/rand"
	"sync/atomic"
	"time"
)

// wallClock satisfies both mesh.MillisecondClock and mesh.RTCClock off the
// process's own wall clock, with CurrentTime overridable via setclock for
// the console's `setclock` command.
type wallClock struct {
	start   time.Time
	rtcSkew int64 // atomically-accessed: seconds added to time.Now().Unix()
}

func newWallClock() *wallClock {
	return &wallClock{start: time.Now()}
}

func (c *wallClock) Millis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

func (c *wallClock) CurrentTime() uint32 {
	skew := atomic.LoadInt64(&c.rtcSkew)
	return uint32(time.Now().Unix() + skew)
}

// SetCurrentTime re-bases CurrentTime so it next returns ts.
func (c *wallClock) SetCurrentTime(ts uint32) {
	skew := int64(ts) - time.Now().Unix()
	atomic.StoreInt64(&c.rtcSkew, skew)
}

// cryptoRNG implements mesh.RNG and io.Reader over crypto/rand, suitable for
// identity generation and jittered scheduling alike.
type cryptoRNG struct{}

// Read lets cryptoRNG serve as mesh.GenerateLocalIdentity's io.Reader.
func (cryptoRNG) Read(p []byte) (int, error) { return rand.Read(p) }

func (cryptoRNG) RandomByte() uint8 {
	var b [1]byte
	_, _ = rand.Read(b[:])
	return b[0]
}

func (cryptoRNG) RandomBytes(dst []byte) {
	_, _ = rand.Read(dst)
}
