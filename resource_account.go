package main

import (
	"fmt"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/statebridge/authnode/pkg/scheme"
)

// SignerCapability grants the ability to act as its bound address without a
// private key. It is only ever minted by CreateReservedAccount and
// CreateResourceAccount; the unexported field keeps other packages from
// forging one. Hand it out by pointer and do not copy it.
type SignerCapability struct {
	addr scheme.Address
}

// Address returns the address the capability is bound to.
func (c *SignerCapability) Address() scheme.Address {
	return c.addr
}

// Signer constructs a synthetic signer for the bound address. Capabilities
// are reusable references: this can be called any number of times.
func (c *SignerCapability) Signer() AccountSigner {
	return AccountSigner{addr: c.addr}
}

// AccountSigner represents signing authority over one address within the
// current transaction scope.
type AccountSigner struct {
	addr scheme.Address
}

// Address returns the address this signer acts as.
func (s AccountSigner) Address() scheme.Address {
	return s.addr
}

// CreateResourceAccount derives a fresh address from the source account's
// current state and provisions it as a capability-only account. The derived
// account's authentication key is immediately rotated to the zero sentinel,
// so the returned capability is the sole means of future control.
func CreateResourceAccount(tx *gorm.DB, source scheme.Address) (AccountSigner, *SignerCapability, error) {
	sequenceNumber, err := SequenceNumber(tx, source)
	if err != nil {
		return AccountSigner{}, nil, errors.Wrap(err, "resolving source account")
	}

	seed := scheme.DeriveSeed(source, sequenceNumber)
	derived := scheme.DeriveResourceAddress(source, seed)

	isResource, err := IsResourceAccount(tx, derived)
	if err != nil {
		return AccountSigner{}, nil, err
	}
	if isResource {
		return AccountSigner{}, nil, fmt.Errorf("%w: %s", ErrAlreadyResourceAccount, derived)
	}

	exists, err := AccountExists(tx, derived)
	if err != nil {
		return AccountSigner{}, nil, err
	}
	if exists {
		// The derived address collides with a pre-existing account. Only
		// adopt it if it has never transacted; anything else may be an
		// adversary front-running the derivation.
		derivedSeq, err := SequenceNumber(tx, derived)
		if err != nil {
			return AccountSigner{}, nil, err
		}
		if derivedSeq != 0 {
			return AccountSigner{}, nil, fmt.Errorf("%w: %s at sequence %d",
				ErrResourceAccountAlreadyUsed, derived, derivedSeq)
		}
	} else {
		if _, err := createAccountEntry(tx, derived); err != nil {
			return AccountSigner{}, nil, errors.Wrap(err, "creating resource account entry")
		}
	}

	if err := RotateAuthenticationKey(tx, derived, scheme.ZeroAuthKey); err != nil {
		return AccountSigner{}, nil, errors.Wrap(err, "rotating resource account key")
	}
	if err := markResourceAccount(tx, derived); err != nil {
		return AccountSigner{}, nil, err
	}

	capability := &SignerCapability{addr: derived}
	return capability.Signer(), capability, nil
}
