// Package signer provides the key generation and signing capability used by wallets and the full node.
//
// Two schemes exist: "ecdsa" signs with secp256k1 and is the only one that provides any security.
// "sim" is a non-cryptographic stand-in with deterministic, seedable keys for simulations and tests.
// The scheme is chosen from configuration when the signer is constructed.
package signer

import (
	"crypto/sha256"

	"github.com/iotaledger/hive.go/ierrors"

	"github.com/Luismorlan/btc_sim/model"
)

const (
	SchemeECDSA = "ecdsa"
	SchemeSim   = "sim"
)

// ErrMalformedKey is returned when key material cannot be parsed.
var ErrMalformedKey = ierrors.New("malformed key")

type Signer interface {
	// Scheme names the signature scheme.
	Scheme() string
	// Generate creates a fresh key pair and its address.
	Generate() (model.KeyPair, error)
	// Sign signs an arbitrary message with the private key.
	Sign(privateKey []byte, message []byte) ([]byte, error)
	// Verify checks that signature was produced over message by the owner of publicKey.
	Verify(publicKey []byte, message []byte, signature []byte) bool
	// Address derives the address of a public key.
	Address(publicKey []byte) (model.Address, error)
}

// New creates the signer for the given scheme. seed is only used by the sim scheme, 0 means random.
func New(scheme string, seed int64) (Signer, error) {
	switch scheme {
	case SchemeECDSA, "":
		return NewECDSASigner(), nil
	case SchemeSim:
		return NewSimSigner(seed), nil
	default:
		return nil, ierrors.Errorf("unknown signer scheme %q", scheme)
	}
}

func digest(msg []byte) []byte {
	sum := sha256.Sum256(msg)
	return sum[:]
}
