package crypto

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multicodec"
	"lukechampine.com/blake3"

	"github.com/concilium/ledgercore/internal/core"
)

var (
	ErrInvalidAddressString = errors.New("invalid address string")
	ErrUnexpectedEncoding   = errors.New("unexpected multibase encoding")
	ErrUnexpectedCodec      = errors.New("unexpected multicodec type")
)

// CodecSecp256k1PubKeyCompressed tags the public-key-hash payload carried
// inside the human-readable address string, the same self-describing
// role a multicodec tag plays in did:key-style encodings.
const CodecSecp256k1PubKeyCompressed multicodec.Code = 0xe7

func addressFromPublicKeyBytes(pubKey []byte) core.Address {
	digest := blake3.Sum256(pubKey)
	var addr core.Address
	copy(addr[:], digest[len(digest)-core.AddressLength:])
	return addr
}

// EncodeAddress renders a raw address as the prefixed, multibase-encoded
// string form users see in wallets and CLI output, using this ledger's
// own AddressPrefix and a multicodec tag that self-describes a
// compressed secp256k1 address payload.
func EncodeAddress(addr core.Address) (string, error) {
	codecHeader := multicodec.Header(CodecSecp256k1PubKeyCompressed)
	var buf bytes.Buffer
	buf.Write(codecHeader)
	buf.Write(addr[:])

	encoded, err := multibase.Encode(multibase.Base58BTC, buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddressString, err)
	}
	return core.AddressPrefix + encoded, nil
}

// DecodeAddress parses the string form produced by EncodeAddress back
// into a raw Address.
func DecodeAddress(s string) (core.Address, error) {
	var addr core.Address
	if !strings.HasPrefix(s, core.AddressPrefix) {
		return addr, fmt.Errorf("%w: missing %q prefix", ErrInvalidAddressString, core.AddressPrefix)
	}
	multibasePart := strings.TrimPrefix(s, core.AddressPrefix)

	encoding, payload, err := multibase.Decode(multibasePart)
	if err != nil {
		return addr, fmt.Errorf("%w: %v", ErrInvalidAddressString, err)
	}
	if encoding != multibase.Base58BTC {
		return addr, fmt.Errorf("%w: got %c", ErrUnexpectedEncoding, encoding)
	}

	code, remaining, err := multicodec.Consume(payload)
	if err != nil {
		return addr, fmt.Errorf("%w: %v", ErrInvalidAddressString, err)
	}
	if multicodec.Code(code) != CodecSecp256k1PubKeyCompressed {
		return addr, fmt.Errorf("%w: got 0x%x", ErrUnexpectedCodec, code)
	}

	return core.AddressFromBytes(remaining)
}

// AddressFromTxHash derives a contract's address from the hash of the
// transaction that deployed it, binding a contract's identity to its
// deployment rather than letting the deployer choose it.
func AddressFromTxHash(txHash [32]byte) core.Address {
	digest := blake3.Sum256(txHash[:])
	var addr core.Address
	copy(addr[:], digest[len(digest)-core.AddressLength:])
	return addr
}
