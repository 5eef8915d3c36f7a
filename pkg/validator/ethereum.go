package validator

import (
	"crypto/ecdsa"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/statebridge/authnode/pkg/scheme"
)

var _ Validator = (*EthereumValidator)(nil)

// EthereumValidator validates recoverable secp256k1 authenticators. The
// payload carries only the 65-byte signature; the public key is recovered
// from it, keccak-256 is the digest algorithm, and the recovered key is
// compressed before authentication-key derivation.
type EthereumValidator struct{}

// NewEthereumValidator returns the validator for the Ethereum scheme.
func NewEthereumValidator() *EthereumValidator {
	return &EthereumValidator{}
}

func (v *EthereumValidator) Scheme() scheme.Scheme { return scheme.Ethereum }

func (v *EthereumValidator) PublicKeyLength() int { return scheme.EcdsaK1PublicKeyLength }

// Validate recovers the signing key from the payload signature over
// keccak256(txHash) and returns its derived authentication key.
func (v *EthereumValidator) Validate(payload []byte, txHash []byte) ([]byte, error) {
	parsed, err := scheme.ParsePayload(payload)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme != scheme.Ethereum {
		return nil, fmt.Errorf("%w: payload tagged %s", scheme.ErrMalformedPayload, parsed.Scheme)
	}

	digest := ethcrypto.Keccak256(txHash)

	// Accept both 27/28 and 0/1 recovery ids.
	sig := make([]byte, len(parsed.Signature))
	copy(sig, parsed.Signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return nil, fmt.Errorf("%w: signature recovery failed: %v", ErrInvalidAuthenticator, err)
	}
	return scheme.AuthenticationKey(scheme.Ethereum, ethcrypto.CompressPubkey(pub)), nil
}

// AuthKeyFromPublicKey derives the authentication key for a compressed
// secp256k1 public key under the Ethereum scheme.
func (v *EthereumValidator) AuthKeyFromPublicKey(publicKey []byte) ([]byte, error) {
	if len(publicKey) != v.PublicKeyLength() {
		return nil, fmt.Errorf("%w: got %d, want %d",
			ErrInvalidPublicKeyLength, len(publicKey), v.PublicKeyLength())
	}
	return scheme.AuthenticationKey(scheme.Ethereum, publicKey), nil
}

// SignEthereum produces an Ethereum authenticator payload for txHash. The
// counterpart of Validate, used by clients and tests.
func SignEthereum(privateKey *ecdsa.PrivateKey, txHash []byte) ([]byte, error) {
	digest := ethcrypto.Keccak256(txHash)
	sig, err := ethcrypto.Sign(digest, privateKey)
	if err != nil {
		return nil, err
	}
	// Adjust V from 0/1 to 27/28 for Ethereum compatibility.
	if sig[64] < 27 {
		sig[64] += 27
	}
	return scheme.EncodeEthereumPayload(sig)
}
