// Package crypto is the trusted external facade the rest of the ledger
// treats as a black box: sign, verify, recover a public key from a
// signature, and derive an address from a public key. None of the core
// transaction-processing logic reaches past this package for key
// material.
package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/concilium/ledgercore/internal/core"
)

var (
	ErrInvalidKeyFormat    = errors.New("invalid key format")
	ErrKeyGeneration       = errors.New("key generation failed")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrRecoveryFailed      = errors.New("public key recovery failed")
	ErrVerificationFailed  = errors.New("signature verification failed")
	ErrDigestLength        = errors.New("digest must be 32 bytes")
)

// PrivateKeyLength and PublicKeyLength describe the raw, fixed-size wire
// form of secp256k1 keys this package hands callers — never a Go
// pointer type, so nothing outside this package needs to import
// decred's curve packages.
const (
	PrivateKeyLength         = 32
	PublicKeyCompressedLength = 33
)

// KeyPair holds the raw bytes of a secp256k1 key pair.
type KeyPair struct {
	PrivateKey [PrivateKeyLength]byte
	PublicKey  [PublicKeyCompressedLength]byte
}

// CreateKeyPair generates a new secp256k1 private/public key pair.
// secp256k1 is used rather than P256 because recovering a public key
// from a signature alone requires a recovery-ID-bearing compact
// signature scheme, which plain P256 ECDSA doesn't provide.
func CreateKeyPair() (KeyPair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	return keyPairFromPrivate(priv), nil
}

// KeyPairFromPrivate rebuilds a KeyPair from raw private key bytes, the
// way a wallet restores a key pair from a stored secret.
func KeyPairFromPrivate(privateKey [PrivateKeyLength]byte) (KeyPair, error) {
	priv := secp256k1.PrivKeyFromBytes(privateKey[:])
	if priv == nil {
		return KeyPair{}, fmt.Errorf("%w: could not parse private key", ErrInvalidKeyFormat)
	}
	return keyPairFromPrivate(priv), nil
}

func keyPairFromPrivate(priv *secp256k1.PrivateKey) KeyPair {
	var kp KeyPair
	copy(kp.PrivateKey[:], priv.Serialize())
	copy(kp.PublicKey[:], priv.PubKey().SerializeCompressed())
	return kp
}

// Sign produces a recoverable signature over a 32-byte digest (normally
// a Transaction.Hash()). The returned bytes embed a recovery ID so that
// RecoverPublicKey can later reconstruct the signer's public key from
// the digest and signature alone, without the verifier needing the
// public key up front.
func Sign(privateKey [PrivateKeyLength]byte, digest [32]byte) ([]byte, error) {
	priv := secp256k1.PrivKeyFromBytes(privateKey[:])
	if priv == nil {
		return nil, fmt.Errorf("%w: could not parse private key", ErrInvalidKeyFormat)
	}
	sig := ecdsa.SignCompact(priv, digest[:], false)
	return sig, nil
}

// Verify reports whether signature is a valid recoverable signature over
// digest by the holder of publicKey.
func Verify(publicKey [PublicKeyCompressedLength]byte, digest [32]byte, signature []byte) bool {
	recovered, err := RecoverPublicKey(digest, signature)
	if err != nil {
		return false
	}
	return recovered == publicKey
}

// RecoverPublicKey reconstructs the compressed public key that produced
// signature over digest. A claim proof carries only a signature, so the
// ledger must recover who signed it without an out-of-band public key.
func RecoverPublicKey(digest [32]byte, signature []byte) ([PublicKeyCompressedLength]byte, error) {
	var out [PublicKeyCompressedLength]byte
	if len(digest) != 32 {
		return out, ErrDigestLength
	}
	pub, _, err := ecdsa.RecoverCompact(signature, digest[:])
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrRecoveryFailed, err)
	}
	copy(out[:], pub.SerializeCompressed())
	return out, nil
}

// AddressFromPublicKey derives the 20-byte ledger address for a public
// key. See address.go for the digest/encoding scheme.
func AddressFromPublicKey(publicKey [PublicKeyCompressedLength]byte) core.Address {
	return addressFromPublicKeyBytes(publicKey[:])
}

// randomNonce returns n bytes of fresh entropy without generating a full
// key pair. Nothing in this module calls it.
func randomNonce(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
