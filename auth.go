package main

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	"github.com/statebridge/authnode/pkg/scheme"
)

const jwtIssuer = "authnode"

// Challenge represents an authentication challenge
type Challenge struct {
	Token              uuid.UUID      // Random challenge token
	Address            scheme.Address // Address this challenge was created for
	Scheme             scheme.Scheme  // Scheme the client announced it will sign with
	CreatedAt          time.Time      // When the challenge was created
	ChallengeExpiresAt time.Time      // When the challenge expires
	Completed          bool           // Whether the challenge has been used
}

// SigningHash returns the 32-byte hash the client must sign to complete the
// challenge: sha3-256(token || address). Binding the address into the hash
// stops a completed challenge from being replayed for another account.
func (c *Challenge) SigningHash() []byte {
	preimage := make([]byte, 0, len(c.Token)+scheme.AddressLength)
	preimage = append(preimage, c.Token[:]...)
	preimage = append(preimage, c.Address.Bytes()...)
	sum := sha3.Sum256(preimage)
	return sum[:]
}

// AuthManager handles authentication challenges and session tokens
type AuthManager struct {
	challenges     map[uuid.UUID]*Challenge // Challenge token -> Challenge
	challengesMu   sync.RWMutex
	challengeTTL   time.Duration
	maxChallenges  int
	cleanupTicker  *time.Ticker
	sessionTTL     time.Duration
	authSigningKey *ecdsa.PrivateKey // Private key used to sign the jwts
}

// JWTClaims are the session claims issued after a completed challenge.
type JWTClaims struct {
	Address string `json:"address"` // Address the session proved control over
	Scheme  string `json:"scheme"`  // Scheme the proof was made under
	jwt.RegisteredClaims
}

// NewAuthManager creates a new authentication manager
func NewAuthManager(signingKey *ecdsa.PrivateKey) (*AuthManager, error) {
	if signingKey == nil {
		return nil, errors.New("auth manager requires a signing key")
	}
	am := &AuthManager{
		challenges:     make(map[uuid.UUID]*Challenge),
		challengeTTL:   5 * time.Minute,
		maxChallenges:  1000, // Prevent DoS
		cleanupTicker:  time.NewTicker(10 * time.Minute),
		sessionTTL:     24 * time.Hour,
		authSigningKey: signingKey,
	}

	// Start background cleanup
	go am.cleanupExpiredChallenges()
	return am, nil
}

// GenerateChallenge creates a new challenge for a specific address
func (am *AuthManager) GenerateChallenge(addr scheme.Address, sch scheme.Scheme) (*Challenge, error) {
	now := time.Now()
	challenge := &Challenge{
		Token:              uuid.New(),
		Address:            addr,
		Scheme:             sch,
		CreatedAt:          now,
		ChallengeExpiresAt: now.Add(am.challengeTTL),
	}

	am.challengesMu.Lock()
	defer am.challengesMu.Unlock()

	// Enforce max challenge limit (basic DoS protection)
	if len(am.challenges) >= am.maxChallenges {
		return nil, errors.New("too many pending challenges")
	}

	am.challenges[challenge.Token] = challenge

	return challenge, nil
}

// GetChallenge returns the pending challenge for a token.
func (am *AuthManager) GetChallenge(challengeToken uuid.UUID) (*Challenge, error) {
	am.challengesMu.RLock()
	defer am.challengesMu.RUnlock()

	challenge, exists := am.challenges[challengeToken]
	if !exists {
		return nil, errors.New("challenge not found")
	}

	return challenge, nil
}

// CompleteChallenge consumes a challenge after its signature was validated.
// A challenge completes at most once; expiry and reuse both invalidate it.
func (am *AuthManager) CompleteChallenge(challengeToken uuid.UUID) error {
	am.challengesMu.Lock()
	defer am.challengesMu.Unlock()

	challenge, exists := am.challenges[challengeToken]
	if !exists {
		return errors.New("challenge not found")
	}

	if time.Now().After(challenge.ChallengeExpiresAt) {
		delete(am.challenges, challengeToken)
		return errors.New("challenge expired")
	}

	if challenge.Completed {
		delete(am.challenges, challengeToken)
		return errors.New("challenge already used")
	}

	challenge.Completed = true
	challenge.ChallengeExpiresAt = time.Now().Add(30 * time.Second) // Keep briefly for reference

	return nil
}

// GenerateJWT issues a session token for an address that completed a
// challenge under the given scheme.
func (am *AuthManager) GenerateJWT(addr scheme.Address, sch scheme.Scheme) (*JWTClaims, string, error) {
	claims := JWTClaims{
		Address: addr.String(),
		Scheme:  sch.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(am.sessionTTL)),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    jwtIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	tokenString, err := token.SignedString(am.authSigningKey)
	if err != nil {
		return nil, "", err
	}

	return &claims, tokenString, nil
}

// VerifyJWT checks a session token and returns its claims.
func (am *AuthManager) VerifyJWT(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &am.authSigningKey.PublicKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid JWT token claims")
	}

	if err := am.validateClaims(claims); err != nil {
		return nil, err
	}

	return claims, nil
}

func (am *AuthManager) validateClaims(claims *JWTClaims) error {
	issuer, err := claims.GetIssuer()
	if err != nil {
		return errors.New("failed to get issuer from JWT token claims")
	}
	expiration, err := claims.GetExpirationTime()
	if err != nil {
		return errors.New("failed to get expiration from JWT token claims")
	}

	if issuer != jwtIssuer {
		return errors.New("invalid JWT token claims")
	}
	if expiration.Before(time.Now()) {
		return errors.New("expired JWT token")
	}

	return nil
}

// cleanupExpiredChallenges periodically removes expired challenges
func (am *AuthManager) cleanupExpiredChallenges() {
	for range am.cleanupTicker.C {
		now := time.Now()

		am.challengesMu.Lock()
		for token, challenge := range am.challenges {
			if now.After(challenge.ChallengeExpiresAt) {
				delete(am.challenges, token)
			}
		}
		am.challengesMu.Unlock()
	}
}
