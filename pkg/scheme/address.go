package scheme

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// AddressLength is the width of an account address in bytes.
const AddressLength = 32

// AuthKeyLength is the width of an authentication key in bytes. It happens
// to equal the address width, which is what makes the self-referential
// default key (the address' own canonical bytes) well formed.
const AuthKeyLength = 32

// Address is a fixed-width account address.
type Address [AddressLength]byte

var (
	// VMReservedAddress is the address reserved for the host runtime
	// itself. No account may ever be created there.
	VMReservedAddress = Address{}

	// FrameworkAddress hosts the framework modules. Normal account
	// creation is refused for it; it is provisioned through the reserved
	// path instead.
	FrameworkAddress = AddressFromByte(0x03)

	// ZeroAuthKey is the all-zero rotation sentinel. An account holding
	// it cannot be signed for by any private key, which is how resource
	// accounts are made capability-only.
	ZeroAuthKey = make([]byte, AuthKeyLength)
)

// AddressFromByte returns the address whose last byte is b and all other
// bytes are zero, matching the short-form framework addresses (0x1, 0x2, ...).
func AddressFromByte(b byte) Address {
	var a Address
	a[AddressLength-1] = b
	return a
}

// AddressFromBytes converts a 32-byte slice into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) != AddressLength {
		return Address{}, fmt.Errorf("invalid address length %d, want %d", len(b), AddressLength)
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// AddressFromHex parses a 0x-prefixed hex string into an Address.
func AddressFromHex(s string) (Address, error) {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address hex: %w", err)
	}
	return AddressFromBytes(raw)
}

// Bytes returns the canonical byte encoding of the address: its raw 32
// bytes. This is the encoding used in every derivation preimage and as the
// self-referential default authentication key.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// IsZero reports whether the address is the all-zero VM-reserved address.
func (a Address) IsZero() bool {
	return a == VMReservedAddress
}

// Equals returns true if both addresses hold the same bytes.
func (a Address) Equals(other Address) bool {
	return bytes.Equal(a[:], other[:])
}

// String implements fmt.Stringer with a 0x-prefixed hex encoding.
func (a Address) String() string {
	return hexutil.Encode(a[:])
}

// MarshalJSON encodes the address as a hex string.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes the address from a hex string.
func (a *Address) UnmarshalJSON(data []byte) error {
	var hexStr string
	if err := json.Unmarshal(data, &hexStr); err != nil {
		return err
	}
	parsed, err := AddressFromHex(hexStr)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
