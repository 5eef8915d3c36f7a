package scheme

import (
	"errors"
	"fmt"
)

// Authenticator payload byte layouts. The payload is not self-describing
// beyond the leading scheme tag: validity is established purely by length
// and offset checks against the layout the tag selects.
const (
	// EcdsaK1SignatureLength is the length of a non-recoverable secp256k1
	// signature (r || s).
	EcdsaK1SignatureLength = 64
	// EcdsaK1PublicKeyLength is the length of a compressed secp256k1
	// public key.
	EcdsaK1PublicKeyLength = 33
	// EthereumSignatureLength is the length of a recoverable secp256k1
	// signature (r || s || v).
	EthereumSignatureLength = 65

	ecdsaK1PayloadLength  = 1 + EcdsaK1SignatureLength + EcdsaK1PublicKeyLength
	ethereumPayloadLength = 1 + EthereumSignatureLength
)

// ErrMalformedPayload is returned when an authenticator payload is too short
// for its scheme's layout, or carries an unknown scheme tag.
var ErrMalformedPayload = errors.New("malformed authenticator payload")

// Payload is a parsed authenticator payload. For recoverable schemes the
// PublicKey field is empty: the key is recovered from the signature during
// validation instead of being carried on the wire.
type Payload struct {
	Scheme    Scheme
	Signature []byte
	PublicKey []byte
}

// ParsePayload slices an authenticator payload into signature and public key
// by the fixed offsets of the scheme named in its leading tag byte.
func ParsePayload(raw []byte) (Payload, error) {
	if len(raw) == 0 {
		return Payload{}, fmt.Errorf("%w: empty", ErrMalformedPayload)
	}
	tag := Scheme(raw[0])
	switch tag {
	case EcdsaK1:
		if len(raw) != ecdsaK1PayloadLength {
			return Payload{}, fmt.Errorf("%w: %s payload is %d bytes, want %d",
				ErrMalformedPayload, tag, len(raw), ecdsaK1PayloadLength)
		}
		return Payload{
			Scheme:    tag,
			Signature: raw[1 : 1+EcdsaK1SignatureLength],
			PublicKey: raw[1+EcdsaK1SignatureLength:],
		}, nil
	case Ethereum:
		if len(raw) != ethereumPayloadLength {
			return Payload{}, fmt.Errorf("%w: %s payload is %d bytes, want %d",
				ErrMalformedPayload, tag, len(raw), ethereumPayloadLength)
		}
		return Payload{
			Scheme:    tag,
			Signature: raw[1:],
		}, nil
	default:
		return Payload{}, fmt.Errorf("%w: unknown scheme tag 0x%02x", ErrMalformedPayload, raw[0])
	}
}

// EncodeEcdsaK1Payload assembles an EcdsaK1 authenticator payload.
func EncodeEcdsaK1Payload(signature, publicKey []byte) ([]byte, error) {
	if len(signature) != EcdsaK1SignatureLength {
		return nil, fmt.Errorf("%w: signature is %d bytes, want %d",
			ErrMalformedPayload, len(signature), EcdsaK1SignatureLength)
	}
	if len(publicKey) != EcdsaK1PublicKeyLength {
		return nil, fmt.Errorf("%w: public key is %d bytes, want %d",
			ErrMalformedPayload, len(publicKey), EcdsaK1PublicKeyLength)
	}
	out := make([]byte, 0, ecdsaK1PayloadLength)
	out = append(out, byte(EcdsaK1))
	out = append(out, signature...)
	out = append(out, publicKey...)
	return out, nil
}

// EncodeEthereumPayload assembles an Ethereum authenticator payload.
func EncodeEthereumPayload(signature []byte) ([]byte, error) {
	if len(signature) != EthereumSignatureLength {
		return nil, fmt.Errorf("%w: signature is %d bytes, want %d",
			ErrMalformedPayload, len(signature), EthereumSignatureLength)
	}
	out := make([]byte, 0, ethereumPayloadLength)
	out = append(out, byte(Ethereum))
	out = append(out, signature...)
	return out, nil
}
