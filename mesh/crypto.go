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
	"crypto/aes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
)

const (
	// CipherKeySize is the AES-128 key length, the first 16 bytes of a shared secret.
	CipherKeySize = 16
	// CipherBlockSize is the AES block size.
	CipherBlockSize = 16
	// CipherMacSize is the truncated HMAC-SHA-256 tag length carried on the wire.
	CipherMacSize = 2
)

// encryptECB AES-128-ECB-encrypts plain under the first CipherKeySize bytes
// of key, zero-padding the final block. There is deliberately no chaining:
// the scheme is per-block and per-(key, plaintext) deterministic, matching
// the fixed-size, no-IV wire format the radio budget requires.
func encryptECB(key [32]byte, plain []byte) []byte {
	block, err := aes.NewCipher(key[:CipherKeySize])
	if err != nil {
		panic("mesh: aes.NewCipher: " + err.Error())
	}

	n := len(plain)
	blocks := (n + CipherBlockSize - 1) / CipherBlockSize
	if blocks == 0 {
		blocks = 1
	}
	padded := make([]byte, blocks*CipherBlockSize)
	copy(padded, plain)

	out := make([]byte, len(padded))
	for off := 0; off < len(padded); off += CipherBlockSize {
		block.Encrypt(out[off:off+CipherBlockSize], padded[off:off+CipherBlockSize])
	}
	return out
}

// decryptECB is the inverse of encryptECB. The result is always a multiple
// of CipherBlockSize; callers recover the true content length from a
// content-defined convention (typically a leading timestamp plus a known
// field layout).
func decryptECB(key [32]byte, cipherText []byte) []byte {
	block, err := aes.NewCipher(key[:CipherKeySize])
	if err != nil {
		panic("mesh: aes.NewCipher: " + err.Error())
	}

	out := make([]byte, len(cipherText))
	for off := 0; off+CipherBlockSize <= len(cipherText); off += CipherBlockSize {
		block.Decrypt(out[off:off+CipherBlockSize], cipherText[off:off+CipherBlockSize])
	}
	return out
}

// macThenEncrypt encrypts plain under key (AES-128-ECB, zero-padded), then
// prepends a CipherMacSize-byte HMAC-SHA-256 tag of the ciphertext computed
// under the full 32-byte key. Wire format: MAC || CIPHER.
func macThenEncrypt(key [32]byte, plain []byte) []byte {
	cipherText := encryptECB(key, plain)
	tag := hmacTag(key, cipherText)

	out := make([]byte, CipherMacSize+len(cipherText))
	copy(out, tag[:])
	copy(out[CipherMacSize:], cipherText)
	return out
}

// verifyThenDecrypt checks the leading MAC in a constant-time comparison
// against a freshly computed HMAC of the remainder; on any mismatch it
// returns ok=false without touching the plaintext (no decryption oracle).
func verifyThenDecrypt(key [32]byte, wire []byte) (plain []byte, ok bool) {
	if len(wire) <= CipherMacSize {
		return nil, false
	}
	cipherText := wire[CipherMacSize:]
	want := hmacTag(key, cipherText)

	if subtle.ConstantTimeCompare(want[:], wire[:CipherMacSize]) != 1 {
		return nil, false
	}
	return decryptECB(key, cipherText), true
}

// hmacTag computes HMAC-SHA-256 of msg under the full 32-byte key, truncated
// to CipherMacSize bytes.
func hmacTag(key [32]byte, msg []byte) [CipherMacSize]byte {
	mac := hmac.New(sha256.New, key[:])
	mac.Write(msg)
	sum := mac.Sum(nil)

	var out [CipherMacSize]byte
	copy(out[:], sum[:CipherMacSize])
	return out
}

// sha256Sum is the single SHA-256 primitive used throughout the mesh layer
// (packet hashing, ACK tags).
func sha256Sum(msg []byte) [32]byte {
	return sha256.Sum256(msg)
}

// sha256Frags hashes two fragments as if concatenated, without allocating
// the concatenation; used to derive ACK hashes from (timestamp||flags||text)
// and the sender's public key as two separate fragments.
func sha256Frags(frag1, frag2 []byte) [32]byte {
	h := sha256.New()
	h.Write(frag1)
	h.Write(frag2)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
