package main

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/statebridge/authnode/pkg/scheme"
)

var (
	ErrAccountAlreadyExists       = errors.New("account already exists")
	ErrAccountNotFound            = errors.New("account not found")
	ErrMalformedKey               = errors.New("malformed authentication key")
	ErrSequenceOverflow           = errors.New("sequence number overflow")
	ErrReservedAddress            = errors.New("cannot create account at reserved address")
	ErrInvalidReservedAddress     = errors.New("address is not on the reserved allow-list")
	ErrAlreadyResourceAccount     = errors.New("address is already a resource account")
	ErrResourceAccountAlreadyUsed = errors.New("account at derived address has already transacted")
)

// reservedAccountAllowList are the framework addresses that may be
// provisioned through the reserved creation path.
var reservedAccountAllowList = []scheme.Address{
	scheme.AddressFromByte(0x01),
	scheme.AddressFromByte(0x02),
	scheme.FrameworkAddress,
}

// Account is the registry entry for one address.
type Account struct {
	Address           string `gorm:"column:address;primaryKey"`
	AuthenticationKey string `gorm:"column:authentication_key;not null"`
	// SequenceNumber covers the full u64 range.
	// type:varchar(24) is set for sqlite to address the issue of not supporting unsigned 64-bit integers
	SequenceNumber decimal.Decimal `gorm:"column:sequence_number;type:varchar(24);not null"`
	IsResource     bool            `gorm:"column:is_resource;not null;default:false"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName specifies the table name for the Account model
func (Account) TableName() string {
	return "accounts"
}

// Addr returns the typed address of the account.
func (a *Account) Addr() (scheme.Address, error) {
	return scheme.AddressFromHex(a.Address)
}

// Sequence returns the account's sequence number as a u64.
func (a *Account) Sequence() uint64 {
	return a.SequenceNumber.BigInt().Uint64()
}

// AuthKey returns the account's authentication key bytes.
func (a *Account) AuthKey() ([]byte, error) {
	return hexutil.Decode(a.AuthenticationKey)
}

func sequenceFromUint64(n uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(n), 0)
}

// SchemeKey is a per-scheme authentication key entry. An address may hold
// one entry per validator scheme concurrently.
type SchemeKey struct {
	Address           string `gorm:"column:address;primaryKey"`
	Scheme            uint8  `gorm:"column:scheme;primaryKey"`
	AuthenticationKey string `gorm:"column:authentication_key;not null"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName specifies the table name for the SchemeKey model
func (SchemeKey) TableName() string {
	return "scheme_keys"
}

// CreateAccount creates the registry entry for an address. The account
// starts at sequence number 0 with the address' own canonical bytes as its
// authentication key.
func CreateAccount(tx *gorm.DB, addr scheme.Address) (Account, error) {
	if addr == scheme.VMReservedAddress || addr == scheme.FrameworkAddress {
		return Account{}, fmt.Errorf("%w: %s", ErrReservedAddress, addr)
	}
	return createAccountEntry(tx, addr)
}

// CreateReservedAccount provisions one of the allow-listed framework
// addresses and hands back the capability that controls it.
func CreateReservedAccount(tx *gorm.DB, addr scheme.Address) (Account, *SignerCapability, error) {
	allowed := false
	for _, reserved := range reservedAccountAllowList {
		if addr.Equals(reserved) {
			allowed = true
			break
		}
	}
	if !allowed {
		return Account{}, nil, fmt.Errorf("%w: %s", ErrInvalidReservedAddress, addr)
	}

	account, err := createAccountEntry(tx, addr)
	if err != nil {
		return Account{}, nil, err
	}
	return account, &SignerCapability{addr: addr}, nil
}

func createAccountEntry(tx *gorm.DB, addr scheme.Address) (Account, error) {
	exists, err := AccountExists(tx, addr)
	if err != nil {
		return Account{}, err
	}
	if exists {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountAlreadyExists, addr)
	}

	defaultKey := addr.Bytes()
	if len(defaultKey) != scheme.AuthKeyLength {
		return Account{}, fmt.Errorf("%w: default key is %d bytes", ErrMalformedKey, len(defaultKey))
	}

	account := Account{
		Address:           addr.String(),
		AuthenticationKey: hexutil.Encode(defaultKey),
		SequenceNumber:    decimal.Zero,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	if err := tx.Create(&account).Error; err != nil {
		return Account{}, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

// GetAccount retrieves the registry entry for an address.
func GetAccount(tx *gorm.DB, addr scheme.Address) (*Account, error) {
	var account Account
	if err := tx.Where("address = ?", addr.String()).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
		}
		return nil, err
	}
	return &account, nil
}

// AccountExists reports whether an address has a registry entry.
func AccountExists(tx *gorm.DB, addr scheme.Address) (bool, error) {
	var count int64
	if err := tx.Model(&Account{}).Where("address = ?", addr.String()).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// SequenceNumber returns the current sequence number for an address.
func SequenceNumber(tx *gorm.DB, addr scheme.Address) (uint64, error) {
	account, err := GetAccount(tx, addr)
	if err != nil {
		return 0, err
	}
	return account.Sequence(), nil
}

// IncrementSequenceNumber advances the sequence number by exactly one,
// refusing to wrap at the u64 maximum. On failure the stored value is left
// untouched.
func IncrementSequenceNumber(tx *gorm.DB, addr scheme.Address) error {
	account, err := GetAccount(tx, addr)
	if err != nil {
		return err
	}
	current := account.Sequence()
	if current == math.MaxUint64 {
		return fmt.Errorf("%w: %s at %d", ErrSequenceOverflow, addr, current)
	}

	update := tx.Model(&Account{}).Where("address = ?", addr.String()).
		Update("sequence_number", sequenceFromUint64(current+1))
	if update.Error != nil {
		return fmt.Errorf("failed to increment sequence number: %w", update.Error)
	}
	return nil
}

// RotateAuthenticationKey replaces the account's authentication key. The
// previous key is not consulted: rotation authority is the caller's concern,
// not the registry's.
func RotateAuthenticationKey(tx *gorm.DB, addr scheme.Address, newKey []byte) error {
	if len(newKey) != scheme.AuthKeyLength {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedKey, len(newKey), scheme.AuthKeyLength)
	}
	if _, err := GetAccount(tx, addr); err != nil {
		return err
	}

	update := tx.Model(&Account{}).Where("address = ?", addr.String()).
		Update("authentication_key", hexutil.Encode(newKey))
	if update.Error != nil {
		return fmt.Errorf("failed to rotate authentication key: %w", update.Error)
	}
	return nil
}

// GetAuthenticationKey returns the account's current authentication key.
func GetAuthenticationKey(tx *gorm.DB, addr scheme.Address) ([]byte, error) {
	account, err := GetAccount(tx, addr)
	if err != nil {
		return nil, err
	}
	return account.AuthKey()
}

// IsResourceAccount reports whether the address carries the permanent
// resource-account marker.
func IsResourceAccount(tx *gorm.DB, addr scheme.Address) (bool, error) {
	var count int64
	err := tx.Model(&Account{}).
		Where("address = ? AND is_resource = ?", addr.String(), true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func markResourceAccount(tx *gorm.DB, addr scheme.Address) error {
	update := tx.Model(&Account{}).Where("address = ?", addr.String()).
		Update("is_resource", true)
	if update.Error != nil {
		return fmt.Errorf("failed to mark resource account: %w", update.Error)
	}
	return nil
}

// SetSchemeAuthenticationKey stores (or replaces) the per-scheme key entry
// for an address.
func SetSchemeAuthenticationKey(tx *gorm.DB, addr scheme.Address, s scheme.Scheme, key []byte) error {
	if len(key) != scheme.AuthKeyLength {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedKey, len(key), scheme.AuthKeyLength)
	}

	entry := SchemeKey{
		Address:           addr.String(),
		Scheme:            uint8(s),
		AuthenticationKey: hexutil.Encode(key),
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	err := tx.Save(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to store scheme key entry: %w", err)
	}
	return nil
}

// GetSchemeAuthenticationKey returns the key registered for an address under
// one scheme. When no entry was ever set it falls back to the address' own
// canonical bytes rather than failing; callers relying on an explicit entry
// must check existence themselves.
func GetSchemeAuthenticationKey(tx *gorm.DB, addr scheme.Address, s scheme.Scheme) ([]byte, error) {
	var entry SchemeKey
	err := tx.Where("address = ? AND scheme = ?", addr.String(), uint8(s)).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return addr.Bytes(), nil
		}
		return nil, err
	}
	return hexutil.Decode(entry.AuthenticationKey)
}

// RemoveSchemeAuthenticationKey clears the per-scheme key entry for an
// address. Removing an absent entry is not an error.
func RemoveSchemeAuthenticationKey(tx *gorm.DB, addr scheme.Address, s scheme.Scheme) error {
	err := tx.Where("address = ? AND scheme = ?", addr.String(), uint8(s)).Delete(&SchemeKey{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove scheme key entry: %w", err)
	}
	return nil
}
