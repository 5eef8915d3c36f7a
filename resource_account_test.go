package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/statebridge/authnode/pkg/scheme"
)

func createSourceAccount(t *testing.T, db *gorm.DB, b byte) scheme.Address {
	t.Helper()
	addr := scheme.AddressFromByte(b)
	_, err := CreateAccount(db, addr)
	require.NoError(t, err)
	return addr
}

func TestCreateResourceAccount(t *testing.T) {
	t.Run("derives a deterministic address from source state", func(t *testing.T) {
		db, cleanup := setupTestDB(t)
		defer cleanup()

		source := createSourceAccount(t, db, 0x01)
		signer, capability, err := CreateResourceAccount(db, source)
		require.NoError(t, err)
		require.NotNil(t, capability)

		assert.Equal(t,
			"0x08ac035cdbd5ff33c4e8a5faa8007baac00ab565669230f5dc6433846b2b9071",
			signer.Address().String())
		assert.NotEqual(t, source, signer.Address())
		assert.Equal(t, signer.Address(), capability.Address())
	})

	t.Run("derived account carries the zero key and the resource marker", func(t *testing.T) {
		db, cleanup := setupTestDB(t)
		defer cleanup()

		source := createSourceAccount(t, db, 0x02)
		signer, _, err := CreateResourceAccount(db, source)
		require.NoError(t, err)

		key, err := GetAuthenticationKey(db, signer.Address())
		require.NoError(t, err)
		assert.Equal(t, scheme.ZeroAuthKey, key)

		isResource, err := IsResourceAccount(db, signer.Address())
		require.NoError(t, err)
		assert.True(t, isResource)
	})

	t.Run("second derivation at the same sequence number fails", func(t *testing.T) {
		db, cleanup := setupTestDB(t)
		defer cleanup()

		source := createSourceAccount(t, db, 0x04)
		_, _, err := CreateResourceAccount(db, source)
		require.NoError(t, err)

		_, _, err = CreateResourceAccount(db, source)
		require.ErrorIs(t, err, ErrAlreadyResourceAccount)
	})

	t.Run("advancing the source sequence yields a fresh derivation", func(t *testing.T) {
		db, cleanup := setupTestDB(t)
		defer cleanup()

		source := createSourceAccount(t, db, 0x05)
		first, _, err := CreateResourceAccount(db, source)
		require.NoError(t, err)

		require.NoError(t, IncrementSequenceNumber(db, source))

		second, _, err := CreateResourceAccount(db, source)
		require.NoError(t, err)
		assert.NotEqual(t, first.Address(), second.Address())
	})

	t.Run("adopts an existing untouched account at the derived address", func(t *testing.T) {
		db, cleanup := setupTestDB(t)
		defer cleanup()

		source := createSourceAccount(t, db, 0x06)
		seed := scheme.DeriveSeed(source, 0)
		derived := scheme.DeriveResourceAddress(source, seed)

		_, err := CreateAccount(db, derived)
		require.NoError(t, err)

		signer, _, err := CreateResourceAccount(db, source)
		require.NoError(t, err)
		assert.Equal(t, derived, signer.Address())

		key, err := GetAuthenticationKey(db, derived)
		require.NoError(t, err)
		assert.Equal(t, scheme.ZeroAuthKey, key, "adoption must still lock out external signers")
	})

	t.Run("rejects a derived address that has already transacted", func(t *testing.T) {
		db, cleanup := setupTestDB(t)
		defer cleanup()

		source := createSourceAccount(t, db, 0x07)
		seed := scheme.DeriveSeed(source, 0)
		derived := scheme.DeriveResourceAddress(source, seed)

		_, err := CreateAccount(db, derived)
		require.NoError(t, err)
		require.NoError(t, IncrementSequenceNumber(db, derived))

		_, _, err = CreateResourceAccount(db, source)
		require.ErrorIs(t, err, ErrResourceAccountAlreadyUsed)
	})

	t.Run("unknown source account", func(t *testing.T) {
		db, cleanup := setupTestDB(t)
		defer cleanup()

		_, _, err := CreateResourceAccount(db, scheme.AddressFromByte(0x08))
		require.ErrorIs(t, err, ErrAccountNotFound)
	})
}

func TestSignerCapability(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	source := createSourceAccount(t, db, 0x09)
	_, capability, err := CreateResourceAccount(db, source)
	require.NoError(t, err)

	// The capability mints any number of signers without being consumed.
	first := capability.Signer()
	second := capability.Signer()
	assert.Equal(t, capability.Address(), first.Address())
	assert.Equal(t, first.Address(), second.Address())
}
