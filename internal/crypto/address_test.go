package crypto

import "testing"

func TestEncodeDecodeAddressRoundTrip(t *testing.T) {
	pair, err := CreateKeyPair()
	if err != nil {
		t.Fatalf("CreateKeyPair: %v", err)
	}
	addr := AddressFromPublicKey(pair.PublicKey)

	encoded, err := EncodeAddress(addr)
	if err != nil {
		t.Fatalf("EncodeAddress: %v", err)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("DecodeAddress: %v", err)
	}
	if decoded != addr {
		t.Fatalf("decoded address does not match original: got %x want %x", decoded, addr)
	}
}

func TestDecodeAddressRejectsMissingPrefix(t *testing.T) {
	if _, err := DecodeAddress("not-an-address"); err == nil {
		t.Fatalf("expected error decoding a string without the address prefix")
	}
}

func TestAddressFromTxHashIsDeterministic(t *testing.T) {
	var txHash [32]byte
	copy(txHash[:], []byte("thirty two bytes of tx hash data"))

	a1 := AddressFromTxHash(txHash)
	a2 := AddressFromTxHash(txHash)
	if a1 != a2 {
		t.Fatalf("AddressFromTxHash is not deterministic")
	}
}
