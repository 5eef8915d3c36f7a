// Package validator implements the per-scheme authenticator validators.
// Every validator is stateless: it proves that an authenticator payload
// carries a signature over a transaction hash and reduces the signing key to
// an authentication key. Whether that key matches stored account state is a
// separate decision that belongs to the caller.
package validator

import (
	"errors"
	"fmt"

	"github.com/statebridge/authnode/pkg/scheme"
)

var (
	// ErrInvalidAuthenticator is returned when a payload parses but its
	// signature does not verify over the given transaction hash.
	ErrInvalidAuthenticator = errors.New("invalid authenticator")

	// ErrInvalidPublicKeyLength is returned when a public key does not
	// match the scheme's expected length.
	ErrInvalidPublicKeyLength = errors.New("invalid public key length")

	// ErrUnknownScheme is returned when no validator is registered for a
	// payload's scheme tag.
	ErrUnknownScheme = errors.New("no validator registered for scheme")
)

// Validator is the uniform contract every signature scheme implements.
type Validator interface {
	// Scheme returns the tag this validator handles.
	Scheme() scheme.Scheme

	// PublicKeyLength returns the scheme's expected public key length in
	// bytes.
	PublicKeyLength() int

	// Validate parses the payload by the scheme's fixed offsets, verifies
	// the signature over txHash with the scheme's digest algorithm, and
	// returns the authentication key derived from the parsed or recovered
	// public key.
	Validate(payload []byte, txHash []byte) ([]byte, error)

	// AuthKeyFromPublicKey derives the authentication key for a public
	// key after checking its length.
	AuthKeyFromPublicKey(publicKey []byte) ([]byte, error)
}

// Registry dispatches authenticator payloads to the validator named by their
// leading scheme tag. One dispatch point instead of one near-identical
// module per scheme.
type Registry struct {
	validators map[scheme.Scheme]Validator
}

// NewRegistry builds a registry over the given validators. Registering two
// validators for the same scheme is a programming error and panics.
func NewRegistry(validators ...Validator) *Registry {
	r := &Registry{validators: make(map[scheme.Scheme]Validator, len(validators))}
	for _, v := range validators {
		if _, dup := r.validators[v.Scheme()]; dup {
			panic(fmt.Sprintf("duplicate validator for scheme %s", v.Scheme()))
		}
		r.validators[v.Scheme()] = v
	}
	return r
}

// DefaultRegistry returns a registry with all supported schemes.
func DefaultRegistry() *Registry {
	return NewRegistry(NewEthereumValidator(), NewEcdsaK1Validator())
}

// Get returns the validator for a scheme.
func (r *Registry) Get(s scheme.Scheme) (Validator, error) {
	v, ok := r.validators[s]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScheme, s)
	}
	return v, nil
}

// Validate dispatches a raw payload by its scheme tag and validates it
// against the transaction hash, returning the derived authentication key.
func (r *Registry) Validate(payload []byte, txHash []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty", scheme.ErrMalformedPayload)
	}
	v, err := r.Get(scheme.Scheme(payload[0]))
	if err != nil {
		return nil, err
	}
	return v.Validate(payload, txHash)
}
