// Package noiseproto implements Hermod's two Noise Protocol Framework
// handshakes — Noise_KK for ordinary file-transfer sessions and Noise_XX for
// share-key enrolment — plus the transport-mode Session that carries
// encrypted, tagged messages once a handshake completes.
//
// The cipher suite mirrors gosuda.org/portal/portal/core/cryptoops's
// Handshaker: a package-level noise.CipherSuite built from
// DH25519/ChaChaPoly/BLAKE2s. Handshake messages travel in the same
// internal/wire frames as every other message.
package noiseproto

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"

	"github.com/flynn/noise"
)

// Suite is the Noise cipher suite used for every Hermod handshake:
// Noise_{KK,XX}_25519_ChaChaPoly_BLAKE2s.
var Suite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashBLAKE2s)

// TagSize is the AEAD authentication tag appended to every ciphertext.
const TagSize = 16

// GenerateStaticKeypair produces a fresh long-lived X25519 keypair for a
// host or server identity, using crypto/ecdh the way
// portal/core/cryptoops/sig.go derives its X25519 keys.
func GenerateStaticKeypair() (noise.DHKey, error) {
	curve := ecdh.X25519()
	priv, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return noise.DHKey{}, fmt.Errorf("noiseproto: generate x25519 key: %w", err)
	}
	return noise.DHKey{
		Private: priv.Bytes(),
		Public:  priv.PublicKey().Bytes(),
	}, nil
}
