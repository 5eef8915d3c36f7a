package main

import (
	"bytes"
	"fmt"

	"gorm.io/gorm"

	"github.com/statebridge/authnode/pkg/scheme"
	"github.com/statebridge/authnode/pkg/validator"
)

// AccountService handles the business logic for registry operations. Every
// mutation runs inside a database transaction so a failed call leaves no
// partial state behind.
type AccountService struct {
	db         *gorm.DB
	validators *validator.Registry
	metrics    *Metrics
	logger     Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(db *gorm.DB, validators *validator.Registry, metrics *Metrics, logger Logger) *AccountService {
	return &AccountService{
		db:         db,
		validators: validators,
		metrics:    metrics,
		logger:     logger.NewSystem("account-service"),
	}
}

// Create provisions a normal account at the given address.
func (s *AccountService) Create(addr scheme.Address) (Account, error) {
	var account Account
	err := s.db.Transaction(func(tx *gorm.DB) error {
		created, err := CreateAccount(tx, addr)
		if err != nil {
			return err
		}
		account = created
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.metrics.AccountsCreated.Inc()
	s.logger.Info("account created", "address", addr.String())
	return account, nil
}

// CreateReserved provisions an allow-listed framework address and returns
// the capability controlling it.
func (s *AccountService) CreateReserved(addr scheme.Address) (Account, *SignerCapability, error) {
	var (
		account    Account
		capability *SignerCapability
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		created, sc, err := CreateReservedAccount(tx, addr)
		if err != nil {
			return err
		}
		account, capability = created, sc
		return nil
	})
	if err != nil {
		return Account{}, nil, err
	}
	s.metrics.AccountsCreated.Inc()
	s.logger.Info("reserved account created", "address", addr.String())
	return account, capability, nil
}

// CreateResource derives and provisions a resource account from the source
// account's current state.
func (s *AccountService) CreateResource(source scheme.Address) (AccountSigner, *SignerCapability, error) {
	var (
		signer     AccountSigner
		capability *SignerCapability
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		sg, sc, err := CreateResourceAccount(tx, source)
		if err != nil {
			return err
		}
		signer, capability = sg, sc
		return nil
	})
	if err != nil {
		return AccountSigner{}, nil, err
	}
	s.metrics.ResourceAccountsCreated.Inc()
	s.logger.Info("resource account created",
		"source", source.String(), "derived", capability.Address().String())
	return signer, capability, nil
}

// Get returns the registry entry for an address.
func (s *AccountService) Get(addr scheme.Address) (*Account, error) {
	return GetAccount(s.db, addr)
}

// IncrementSequence advances the address' sequence number by one.
func (s *AccountService) IncrementSequence(addr scheme.Address) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return IncrementSequenceNumber(tx, addr)
	})
}

// RotateKeyEntry validates the public key against the scheme's expected
// length, derives the new authentication key and stores it scoped under the
// validator's tag, so an address can hold one key per scheme concurrently.
func (s *AccountService) RotateKeyEntry(addr scheme.Address, sch scheme.Scheme, publicKey []byte) error {
	v, err := s.validators.Get(sch)
	if err != nil {
		return err
	}
	authKey, err := v.AuthKeyFromPublicKey(publicKey)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := GetAccount(tx, addr); err != nil {
			return err
		}
		return SetSchemeAuthenticationKey(tx, addr, sch, authKey)
	})
	if err != nil {
		return err
	}
	s.metrics.KeyRotations.WithLabelValues(sch.String()).Inc()
	s.logger.Info("authentication key rotated", "address", addr.String(), "scheme", sch.String())
	return nil
}

// RemoveKeyEntry clears the address' key entry for one scheme.
func (s *AccountService) RemoveKeyEntry(addr scheme.Address, sch scheme.Scheme) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return RemoveSchemeAuthenticationKey(tx, addr, sch)
	})
}

// SchemeKeyFor returns the key registered for an address under one scheme,
// falling back to the address' canonical bytes when none was ever set.
func (s *AccountService) SchemeKeyFor(addr scheme.Address, sch scheme.Scheme) ([]byte, error) {
	return GetSchemeAuthenticationKey(s.db, addr, sch)
}

// AuthorizeTransaction is the full authentication path for one transaction:
// the payload's signature is validated over the transaction hash, the
// derived authentication key is cross-checked against the key stored for the
// sender under the payload's scheme, and on success the sender's sequence
// number is incremented. The cross-check deliberately lives here rather than
// inside the validators, which only prove signature possession.
func (s *AccountService) AuthorizeTransaction(sender scheme.Address, payload []byte, txHash []byte) error {
	if len(payload) == 0 {
		return scheme.ErrMalformedPayload
	}
	sch := scheme.Scheme(payload[0])

	derivedKey, err := s.validators.Validate(payload, txHash)
	if err != nil {
		s.metrics.Validations.WithLabelValues(sch.String(), "failure").Inc()
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		storedKey, err := GetSchemeAuthenticationKey(tx, sender, sch)
		if err != nil {
			return err
		}
		if !bytes.Equal(derivedKey, storedKey) {
			return fmt.Errorf("%w: authentication key mismatch for %s under %s",
				validator.ErrInvalidAuthenticator, sender, sch)
		}
		return IncrementSequenceNumber(tx, sender)
	})
	if err != nil {
		s.metrics.Validations.WithLabelValues(sch.String(), "failure").Inc()
		return err
	}

	s.metrics.Validations.WithLabelValues(sch.String(), "success").Inc()
	return nil
}
