package main

import (
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statebridge/authnode/pkg/scheme"
)

func newTestAuthManager(t *testing.T) *AuthManager {
	t.Helper()
	signingKey, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	am, err := NewAuthManager(signingKey)
	require.NoError(t, err)
	return am
}

func TestAuthManagerChallenge(t *testing.T) {
	am := newTestAuthManager(t)
	addr := scheme.AddressFromByte(0x71)

	challenge, err := am.GenerateChallenge(addr, scheme.Ethereum)
	require.NoError(t, err)
	require.NotNil(t, challenge)
	assert.Equal(t, addr, challenge.Address)
	assert.Equal(t, scheme.Ethereum, challenge.Scheme)
	assert.False(t, challenge.Completed)
	assert.Len(t, challenge.SigningHash(), 32)

	// Lookup by token
	got, err := am.GetChallenge(challenge.Token)
	require.NoError(t, err)
	assert.Equal(t, challenge, got)

	// Completion consumes the challenge exactly once
	require.NoError(t, am.CompleteChallenge(challenge.Token))
	err = am.CompleteChallenge(challenge.Token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already used")

	// Unknown token
	_, err = am.GetChallenge(uuid.New())
	require.Error(t, err)
}

func TestAuthManagerChallengeExpiry(t *testing.T) {
	am := newTestAuthManager(t)
	addr := scheme.AddressFromByte(0x72)

	challenge, err := am.GenerateChallenge(addr, scheme.EcdsaK1)
	require.NoError(t, err)

	am.challengesMu.Lock()
	challenge.ChallengeExpiresAt = time.Now().Add(-time.Second)
	am.challengesMu.Unlock()

	err = am.CompleteChallenge(challenge.Token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")

	// Expired challenges are dropped on first touch
	_, err = am.GetChallenge(challenge.Token)
	require.Error(t, err)
}

func TestAuthManagerSigningHashBindsAddress(t *testing.T) {
	am := newTestAuthManager(t)

	a, err := am.GenerateChallenge(scheme.AddressFromByte(0x73), scheme.Ethereum)
	require.NoError(t, err)
	b, err := am.GenerateChallenge(scheme.AddressFromByte(0x74), scheme.Ethereum)
	require.NoError(t, err)

	assert.NotEqual(t, a.SigningHash(), b.SigningHash())
}

func TestAuthManagerJWT(t *testing.T) {
	am := newTestAuthManager(t)
	addr := scheme.AddressFromByte(0x75)

	claims, tokenString, err := am.GenerateJWT(addr, scheme.Ethereum)
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)
	assert.Equal(t, addr.String(), claims.Address)
	assert.Equal(t, scheme.Ethereum.String(), claims.Scheme)

	verified, err := am.VerifyJWT(tokenString)
	require.NoError(t, err)
	assert.Equal(t, addr.String(), verified.Address)
	assert.Equal(t, scheme.Ethereum.String(), verified.Scheme)

	// A token signed by a different key is rejected
	other := newTestAuthManager(t)
	_, err = other.VerifyJWT(tokenString)
	require.Error(t, err)

	// Garbage is rejected
	_, err = am.VerifyJWT("not.a.jwt")
	require.Error(t, err)
}
