package signer

import (
	"bytes"
	"encoding/hex"
	"math/rand"
	"sync"
	"time"

	"github.com/iotaledger/hive.go/ierrors"

	"github.com/Luismorlan/btc_sim/model"
)

const simKeyLen = 32

// SimSigner is NOT cryptographically secure. Anybody who knows a public key can produce
// valid signatures for it. It only exists to run simulations without real key material
// and to get deterministic keys in tests.
type SimSigner struct {
	m   sync.Mutex
	rnd *rand.Rand
}

// NewSimSigner creates a sim signer. The same non-zero seed always yields the same key sequence.
func NewSimSigner(seed int64) *SimSigner {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimSigner{rnd: rand.New(rand.NewSource(seed))}
}

func (s *SimSigner) Scheme() string {
	return SchemeSim
}

func (s *SimSigner) Generate() (model.KeyPair, error) {
	entropy := make([]byte, simKeyLen)
	s.m.Lock()
	s.rnd.Read(entropy)
	s.m.Unlock()

	sk := digest(entropy)
	pk := digest(sk)
	addr, err := s.Address(pk)
	if err != nil {
		return model.KeyPair{}, err
	}
	return model.KeyPair{PrivateKey: sk, PublicKey: pk, Address: addr}, nil
}

func (s *SimSigner) Sign(privateKey []byte, message []byte) ([]byte, error) {
	if len(privateKey) != simKeyLen {
		return nil, ierrors.Wrapf(ErrMalformedKey, "sim private key must be %d bytes, got %d", simKeyLen, len(privateKey))
	}
	return simSignature(digest(privateKey), message), nil
}

func (s *SimSigner) Verify(publicKey []byte, message []byte, signature []byte) bool {
	if len(publicKey) != simKeyLen {
		return false
	}
	return bytes.Equal(simSignature(publicKey, message), signature)
}

func (s *SimSigner) Address(publicKey []byte) (model.Address, error) {
	if len(publicKey) != simKeyLen {
		return "", ierrors.Wrapf(ErrMalformedKey, "sim public key must be %d bytes, got %d", simKeyLen, len(publicKey))
	}
	return model.Address("sim" + hex.EncodeToString(publicKey)[:32]), nil
}

func simSignature(publicKey []byte, message []byte) []byte {
	data := make([]byte, 0, len(message)+len(publicKey))
	data = append(data, message...)
	data = append(data, publicKey...)
	return digest(data)
}
