package main

import (
	"crypto/sha256"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/statebridge/authnode/pkg/scheme"
	"github.com/statebridge/authnode/pkg/validator"
)

func setupAccountService(t *testing.T) (*AccountService, *gorm.DB, func()) {
	t.Helper()
	db, cleanup := setupTestDB(t)
	metrics := NewMetricsWithRegistry(prometheus.NewRegistry())
	svc := NewAccountService(db, validator.DefaultRegistry(), metrics, NewLoggerIPFS("account-service.test"))
	return svc, db, cleanup
}

func testTxHash(payload string) []byte {
	sum := sha256.Sum256([]byte(payload))
	return sum[:]
}

func TestAccountServiceRotateKeyEntry(t *testing.T) {
	svc, _, cleanup := setupAccountService(t)
	defer cleanup()

	privateKey, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	publicKey := ethcrypto.CompressPubkey(&privateKey.PublicKey)

	addr := scheme.AddressFromByte(0x51)
	_, err = svc.Create(addr)
	require.NoError(t, err)

	t.Run("stores the derived key scoped to the scheme", func(t *testing.T) {
		require.NoError(t, svc.RotateKeyEntry(addr, scheme.Ethereum, publicKey))

		stored, err := svc.SchemeKeyFor(addr, scheme.Ethereum)
		require.NoError(t, err)
		assert.Equal(t, scheme.AuthenticationKey(scheme.Ethereum, publicKey), stored)

		// Entries under other schemes keep their default.
		other, err := svc.SchemeKeyFor(addr, scheme.EcdsaK1)
		require.NoError(t, err)
		assert.Equal(t, addr.Bytes(), other)
	})

	t.Run("rejects a public key of the wrong length", func(t *testing.T) {
		err := svc.RotateKeyEntry(addr, scheme.Ethereum, publicKey[:16])
		require.ErrorIs(t, err, validator.ErrInvalidPublicKeyLength)
	})

	t.Run("rejects an unknown scheme", func(t *testing.T) {
		err := svc.RotateKeyEntry(addr, scheme.Scheme(0x7F), publicKey)
		require.ErrorIs(t, err, validator.ErrUnknownScheme)
	})

	t.Run("requires an existing account", func(t *testing.T) {
		err := svc.RotateKeyEntry(scheme.AddressFromByte(0x52), scheme.Ethereum, publicKey)
		require.ErrorIs(t, err, ErrAccountNotFound)
	})
}

func TestAccountServiceAuthorizeTransaction(t *testing.T) {
	newFundedSender := func(t *testing.T, svc *AccountService) (scheme.Address, []byte) {
		t.Helper()
		privateKey, err := ethcrypto.GenerateKey()
		require.NoError(t, err)
		publicKey := ethcrypto.CompressPubkey(&privateKey.PublicKey)

		sender := scheme.AddressFromPublicKey(scheme.Ethereum, publicKey)
		_, err = svc.Create(sender)
		require.NoError(t, err)

		txHash := testTxHash("transfer 10 to 0x55")
		payload, err := validator.SignEthereum(privateKey, txHash)
		require.NoError(t, err)
		return sender, payload
	}

	t.Run("accepts a valid authenticator and advances the sequence", func(t *testing.T) {
		svc, db, cleanup := setupAccountService(t)
		defer cleanup()

		sender, payload := newFundedSender(t, svc)
		txHash := testTxHash("transfer 10 to 0x55")

		require.NoError(t, svc.AuthorizeTransaction(sender, payload, txHash))

		seq, err := SequenceNumber(db, sender)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), seq)
	})

	t.Run("rejects a signature over a different hash", func(t *testing.T) {
		svc, db, cleanup := setupAccountService(t)
		defer cleanup()

		sender, payload := newFundedSender(t, svc)

		err := svc.AuthorizeTransaction(sender, payload, testTxHash("a different transaction"))
		require.Error(t, err)

		seq, err := SequenceNumber(db, sender)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), seq, "rejected transactions must not advance the sequence")
	})

	t.Run("rejects an authenticator for a key the sender never registered", func(t *testing.T) {
		svc, _, cleanup := setupAccountService(t)
		defer cleanup()

		_, payload := newFundedSender(t, svc)

		stranger := scheme.AddressFromByte(0x61)
		_, err := svc.Create(stranger)
		require.NoError(t, err)

		err = svc.AuthorizeTransaction(stranger, payload, testTxHash("transfer 10 to 0x55"))
		require.ErrorIs(t, err, validator.ErrInvalidAuthenticator)
	})

	t.Run("honors a rotated scheme key", func(t *testing.T) {
		svc, _, cleanup := setupAccountService(t)
		defer cleanup()

		privateKey, err := ethcrypto.GenerateKey()
		require.NoError(t, err)
		publicKey := ethcrypto.CompressPubkey(&privateKey.PublicKey)

		// The sender's address is unrelated to the key; only the rotated
		// entry ties them together.
		sender := scheme.AddressFromByte(0x62)
		_, err = svc.Create(sender)
		require.NoError(t, err)
		require.NoError(t, svc.RotateKeyEntry(sender, scheme.Ethereum, publicKey))

		txHash := testTxHash("rotated key transfer")
		payload, err := validator.SignEthereum(privateKey, txHash)
		require.NoError(t, err)

		require.NoError(t, svc.AuthorizeTransaction(sender, payload, txHash))
	})

	t.Run("accepts an ecdsa-k1 authenticator", func(t *testing.T) {
		svc, _, cleanup := setupAccountService(t)
		defer cleanup()

		privateKey, err := ethcrypto.GenerateKey()
		require.NoError(t, err)
		publicKey := ethcrypto.CompressPubkey(&privateKey.PublicKey)

		sender := scheme.AddressFromPublicKey(scheme.EcdsaK1, publicKey)
		_, err = svc.Create(sender)
		require.NoError(t, err)
		require.NoError(t, svc.RotateKeyEntry(sender, scheme.EcdsaK1, publicKey))

		txHash := testTxHash("k1 transfer")
		payload, err := validator.SignEcdsaK1(privateKey, txHash)
		require.NoError(t, err)

		require.NoError(t, svc.AuthorizeTransaction(sender, payload, txHash))
	})

	t.Run("rejects an empty payload", func(t *testing.T) {
		svc, _, cleanup := setupAccountService(t)
		defer cleanup()

		sender, _ := newFundedSender(t, svc)
		err := svc.AuthorizeTransaction(sender, nil, testTxHash("x"))
		require.ErrorIs(t, err, scheme.ErrMalformedPayload)
	})
}
