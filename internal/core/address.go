package core

import "encoding/hex"

// AddressLength is the fixed byte width of a ledger address.
const AddressLength = 20

// Address is a 20-byte identifier deterministically derived from a public
// key by the crypto facade (see internal/crypto). It is a plain value type
// here so that core has no dependency on the signing/hashing machinery
// that produces it.
type Address [AddressLength]byte

// IsZero reports whether the address is the unset zero value.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Bytes returns a copy of the address's raw bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// String renders the address as a plain hex string. Use the crypto
// package's EncodeAddress for the prefixed, multibase-encoded display
// form.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// AddressFromBytes copies raw bytes into an Address, failing if the
// length does not match AddressLength.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLength {
		return a, ErrInvalidAddressLength
	}
	copy(a[:], b)
	return a, nil
}
