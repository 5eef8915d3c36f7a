package validator

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/statebridge/authnode/pkg/scheme"
)

var _ Validator = (*EcdsaK1Validator)(nil)

// EcdsaK1Validator validates non-recoverable secp256k1 authenticators. The
// payload carries the 64-byte signature and the 33-byte compressed public
// key, and SHA-256 is the digest algorithm.
type EcdsaK1Validator struct{}

// NewEcdsaK1Validator returns the validator for the EcdsaK1 scheme.
func NewEcdsaK1Validator() *EcdsaK1Validator {
	return &EcdsaK1Validator{}
}

func (v *EcdsaK1Validator) Scheme() scheme.Scheme { return scheme.EcdsaK1 }

func (v *EcdsaK1Validator) PublicKeyLength() int { return scheme.EcdsaK1PublicKeyLength }

// Validate verifies the payload signature over sha256(txHash) against the
// payload-carried public key and returns that key's derived authentication
// key.
func (v *EcdsaK1Validator) Validate(payload []byte, txHash []byte) ([]byte, error) {
	parsed, err := scheme.ParsePayload(payload)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme != scheme.EcdsaK1 {
		return nil, fmt.Errorf("%w: payload tagged %s", scheme.ErrMalformedPayload, parsed.Scheme)
	}

	digest := sha256.Sum256(txHash)
	if !ethcrypto.VerifySignature(parsed.PublicKey, digest[:], parsed.Signature) {
		return nil, fmt.Errorf("%w: secp256k1 verification failed", ErrInvalidAuthenticator)
	}
	return scheme.AuthenticationKey(scheme.EcdsaK1, parsed.PublicKey), nil
}

// AuthKeyFromPublicKey derives the authentication key for a compressed
// secp256k1 public key under the EcdsaK1 scheme.
func (v *EcdsaK1Validator) AuthKeyFromPublicKey(publicKey []byte) ([]byte, error) {
	if len(publicKey) != v.PublicKeyLength() {
		return nil, fmt.Errorf("%w: got %d, want %d",
			ErrInvalidPublicKeyLength, len(publicKey), v.PublicKeyLength())
	}
	return scheme.AuthenticationKey(scheme.EcdsaK1, publicKey), nil
}

// SignEcdsaK1 produces an EcdsaK1 authenticator payload for txHash. The
// counterpart of Validate, used by clients and tests.
func SignEcdsaK1(privateKey *ecdsa.PrivateKey, txHash []byte) ([]byte, error) {
	digest := sha256.Sum256(txHash)
	sig, err := ethcrypto.Sign(digest[:], privateKey)
	if err != nil {
		return nil, err
	}
	publicKey := ethcrypto.CompressPubkey(&privateKey.PublicKey)
	return scheme.EncodeEcdsaK1Payload(sig[:scheme.EcdsaK1SignatureLength], publicKey)
}
