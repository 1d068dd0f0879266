package crypto

import (
	"testing"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	pair, err := CreateKeyPair()
	if err != nil {
		t.Fatalf("CreateKeyPair: %v", err)
	}
	var digest [32]byte
	copy(digest[:], []byte("some 32 byte digest for testing"))

	sig, err := Sign(pair.PrivateKey, digest)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !Verify(pair.PublicKey, digest, sig) {
		t.Fatalf("Verify: expected valid signature to verify")
	}
}

func TestVerifyRejectsWrongDigest(t *testing.T) {
	pair, err := CreateKeyPair()
	if err != nil {
		t.Fatalf("CreateKeyPair: %v", err)
	}
	var digest, other [32]byte
	copy(digest[:], []byte("digest one, thirty two bytes!!!"))
	copy(other[:], []byte("digest two, thirty two bytes!!!"))

	sig, err := Sign(pair.PrivateKey, digest)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if Verify(pair.PublicKey, other, sig) {
		t.Fatalf("Verify: expected signature over a different digest to fail")
	}
}

func TestRecoverPublicKeyMatchesSigner(t *testing.T) {
	pair, err := CreateKeyPair()
	if err != nil {
		t.Fatalf("CreateKeyPair: %v", err)
	}
	var digest [32]byte
	copy(digest[:], []byte("another thirty two byte digest!"))

	sig, err := Sign(pair.PrivateKey, digest)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	recovered, err := RecoverPublicKey(digest, sig)
	if err != nil {
		t.Fatalf("RecoverPublicKey: %v", err)
	}
	if recovered != pair.PublicKey {
		t.Fatalf("recovered public key does not match signer")
	}
}

func TestKeyPairFromPrivateRoundTrip(t *testing.T) {
	pair, err := CreateKeyPair()
	if err != nil {
		t.Fatalf("CreateKeyPair: %v", err)
	}
	rebuilt, err := KeyPairFromPrivate(pair.PrivateKey)
	if err != nil {
		t.Fatalf("KeyPairFromPrivate: %v", err)
	}
	if rebuilt.PublicKey != pair.PublicKey {
		t.Fatalf("rebuilt public key does not match original")
	}
}
