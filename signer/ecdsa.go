package signer

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/iotaledger/hive.go/ierrors"

	"github.com/Luismorlan/btc_sim/model"
)

const (
	privateKeyLen = 32
	// Raw X||Y public key without the 0x04 prefix.
	publicKeyLen = 64
	addressLen   = 34
)

// ECDSASigner signs with secp256k1 keys.
type ECDSASigner struct{}

func NewECDSASigner() *ECDSASigner {
	return &ECDSASigner{}
}

func (s *ECDSASigner) Scheme() string {
	return SchemeECDSA
}

func (s *ECDSASigner) Generate() (model.KeyPair, error) {
	sk, err := btcec.NewPrivateKey()
	if err != nil {
		return model.KeyPair{}, ierrors.Wrap(err, "failed to generate secp256k1 key")
	}
	pk := sk.PubKey().SerializeUncompressed()[1:]
	addr, err := s.Address(pk)
	if err != nil {
		return model.KeyPair{}, err
	}
	return model.KeyPair{
		PrivateKey: sk.Serialize(),
		PublicKey:  pk,
		Address:    addr,
	}, nil
}

// Sign a message's SHA256 digest with provided private key.
func (s *ECDSASigner) Sign(privateKey []byte, message []byte) ([]byte, error) {
	if len(privateKey) != privateKeyLen {
		return nil, ierrors.Wrapf(ErrMalformedKey, "private key must be %d bytes, got %d", privateKeyLen, len(privateKey))
	}
	sk, _ := btcec.PrivKeyFromBytes(privateKey)
	if sk.Key.IsZero() {
		return nil, ierrors.Wrap(ErrMalformedKey, "private key is zero")
	}
	return ecdsa.Sign(sk, digest(message)).Serialize(), nil
}

// Verify the given signature matches the message.
func (s *ECDSASigner) Verify(publicKey []byte, message []byte, signature []byte) bool {
	pk, err := parsePublicKey(publicKey)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return false
	}
	return sig.Verify(digest(message), pk)
}

// Address is the first 34 hex characters of the SHA256 digest of the raw public key.
func (s *ECDSASigner) Address(publicKey []byte) (model.Address, error) {
	if _, err := parsePublicKey(publicKey); err != nil {
		return "", err
	}
	return model.Address(hex.EncodeToString(digest(publicKey))[:addressLen]), nil
}

func parsePublicKey(publicKey []byte) (*btcec.PublicKey, error) {
	if len(publicKey) != publicKeyLen {
		return nil, ierrors.Wrapf(ErrMalformedKey, "public key must be %d bytes, got %d", publicKeyLen, len(publicKey))
	}
	pk, err := btcec.ParsePubKey(append([]byte{0x04}, publicKey...))
	if err != nil {
		return nil, ierrors.Wrap(ErrMalformedKey, err.Error())
	}
	return pk, nil
}
