// Package scheme defines the signature scheme tags, the authentication-key
// derivation rules and the authenticator payload layouts shared by every
// validator. Everything in this package is a pure function of its inputs:
// no storage, no host state.
package scheme

import "fmt"

// Scheme identifies the signature/hash algorithm family a key or
// authenticator payload belongs to. The byte value is part of every hash
// preimage, so the numbering is a consensus constant and must never change.
type Scheme uint8

const (
	Ed25519      Scheme = 0x00
	MultiEd25519 Scheme = 0x01
	EcdsaK1      Scheme = 0x02
	Ethereum     Scheme = 0x03
)

// ResourceDomainSeparator is appended to the resource-account derivation
// preimage. It is deliberately far outside the scheme tag range so a
// resource-account address can never collide with an address derived under
// any authentication scheme, even with identical remaining preimage bytes.
const ResourceDomainSeparator byte = 0xFF

// String returns a human-readable name for the scheme.
func (s Scheme) String() string {
	switch s {
	case Ed25519:
		return "Ed25519"
	case MultiEd25519:
		return "MultiEd25519"
	case EcdsaK1:
		return "EcdsaK1"
	case Ethereum:
		return "Ethereum"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(s))
	}
}

// Valid reports whether the scheme is one of the known tags.
func (s Scheme) Valid() bool {
	switch s {
	case Ed25519, MultiEd25519, EcdsaK1, Ethereum:
		return true
	}
	return false
}
