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
	"crypto/ed25519"
	"crypto/sha512"
	"fmt"
	"io"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/curve25519"
)

const (
	// PubKeySize is the size in bytes of an Ed25519 public key / node identity.
	PubKeySize = ed25519.PublicKeySize // 32
	// PrvKeySize is the size in bytes of an Ed25519 private key (seed || pub).
	PrvKeySize = ed25519.PrivateKeySize // 64
	// SigSize is the size in bytes of an Ed25519 signature.
	SigSize = ed25519.SignatureSize // 64
	// SeedSize is the size in bytes of the RNG-derived Ed25519 seed.
	SeedSize = ed25519.SeedSize // 32
)

// Identity is a remote node's public key.
type Identity struct {
	PubKey [PubKeySize]byte
}

// NewIdentity wraps a raw 32-byte public key.
func NewIdentity(pub [PubKeySize]byte) Identity { return Identity{PubKey: pub} }

// Verify checks an Ed25519 signature over message against this identity's public key.
func (id Identity) Verify(sig [SigSize]byte, message []byte) bool {
	return ed25519.Verify(id.PubKey[:], message, sig[:])
}

// Hash1 returns the 1-byte truncated node hash used in packet paths/headers.
func (id Identity) Hash1() byte { return id.PubKey[0] }

// Hash4 returns the 4-byte truncated node hash used inside encrypted envelopes.
func (id Identity) Hash4() [4]byte {
	var h [4]byte
	copy(h[:], id.PubKey[:4])
	return h
}

// LocalIdentity additionally carries the private key, allowing signing and
// ECDH shared-secret derivation.
type LocalIdentity struct {
	Identity
	PrvKey [PrvKeySize]byte
}

// GenerateLocalIdentity draws SeedSize bytes from rng and derives an Ed25519
// key pair, mirroring LocalIdentity::LocalIdentity(RNG*) in the original firmware.
func GenerateLocalIdentity(rng io.Reader) (*LocalIdentity, error) {
	seed := make([]byte, SeedSize)
	if _, err := io.ReadFull(rng, seed); err != nil {
		return nil, fmt.Errorf("mesh: generate identity: %w", err)
	}
	prv := ed25519.NewKeyFromSeed(seed)
	pub := prv.Public().(ed25519.PublicKey)

	li := &LocalIdentity{}
	copy(li.PubKey[:], pub)
	copy(li.PrvKey[:], prv)
	return li, nil
}

// LocalIdentityFromSeed deterministically derives a key pair from a 32-byte
// seed, useful for tests and for re-loading a persisted identity.
func LocalIdentityFromSeed(seed [SeedSize]byte) *LocalIdentity {
	prv := ed25519.NewKeyFromSeed(seed[:])
	pub := prv.Public().(ed25519.PublicKey)
	li := &LocalIdentity{}
	copy(li.PubKey[:], pub)
	copy(li.PrvKey[:], prv)
	return li
}

// Sign produces a standard Ed25519 signature over message.
func (li *LocalIdentity) Sign(message []byte) [SigSize]byte {
	sig := ed25519.Sign(li.PrvKey[:], message)
	var out [SigSize]byte
	copy(out[:], sig)
	return out
}

// SharedSecret derives the X25519-style Diffie-Hellman shared secret between
// this node's private key and a remote Ed25519 public key. The secret is
// cached by the caller (typically inside a Contact/Client record) and never
// transmitted. The derivation converts both Ed25519 keys to their Montgomery
// (Curve25519) form before performing the scalar multiplication, since the
// stdlib crypto/ed25519 package exposes no key-exchange primitive of its own.
func (li *LocalIdentity) SharedSecret(remote Identity) ([32]byte, error) {
	xPriv, err := ed25519PrivateToX25519(li.PrvKey)
	if err != nil {
		return [32]byte{}, err
	}
	xPub, err := ed25519PublicToX25519(remote.PubKey)
	if err != nil {
		return [32]byte{}, err
	}

	shared, err := curve25519.X25519(xPriv[:], xPub[:])
	if err != nil {
		return [32]byte{}, fmt.Errorf("mesh: x25519: %w", err)
	}
	var out [32]byte
	copy(out[:], shared)
	return out, nil
}

// ed25519PublicToX25519 converts an Ed25519 public key (an Edwards point) to
// its Curve25519 Montgomery-form u-coordinate, via filippo.io/edwards25519's
// point decoder.
func ed25519PublicToX25519(pub [PubKeySize]byte) ([32]byte, error) {
	p, err := new(edwards25519.Point).SetBytes(pub[:])
	if err != nil {
		return [32]byte{}, fmt.Errorf("mesh: invalid ed25519 public key: %w", err)
	}
	var out [32]byte
	copy(out[:], p.BytesMontgomery())
	return out, nil
}

// ed25519PrivateToX25519 converts an Ed25519 private key to the Curve25519
// scalar used for X25519, by hashing the 32-byte seed with SHA-512 and
// keeping the lower half (the same derivation Ed25519 itself uses to obtain
// its signing scalar). curve25519.X25519 clamps the scalar per RFC 7748.
func ed25519PrivateToX25519(prv [PrvKeySize]byte) ([32]byte, error) {
	seed := prv[:SeedSize]
	h := sha512.Sum512(seed)
	var out [32]byte
	copy(out[:], h[:32])
	return out, nil
}
