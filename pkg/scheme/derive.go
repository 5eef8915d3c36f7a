package scheme

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// AuthenticationKey derives the 32-byte authentication key for a public key
// under the given scheme: blake2b-256(tag || pubkey). The tag byte domain
// separates the schemes, so the same public key bytes registered under two
// schemes yield unrelated keys.
func AuthenticationKey(s Scheme, publicKey []byte) []byte {
	preimage := make([]byte, 0, 1+len(publicKey))
	preimage = append(preimage, byte(s))
	preimage = append(preimage, publicKey...)
	sum := blake2b.Sum256(preimage)
	return sum[:]
}

// AddressFromPublicKey reinterprets the authentication key digest as an
// account address.
func AddressFromPublicKey(s Scheme, publicKey []byte) Address {
	var a Address
	copy(a[:], AuthenticationKey(s, publicKey))
	return a
}

// DeriveSeed computes the resource-account seed for a source address at a
// given sequence number: sha3-256(addr || u64le(seq)). Because the sequence
// number advances with every transaction the source sends, each derivation
// from the same source gets a fresh seed.
func DeriveSeed(source Address, sequenceNumber uint64) []byte {
	preimage := make([]byte, 0, AddressLength+8)
	preimage = append(preimage, source.Bytes()...)
	preimage = binary.LittleEndian.AppendUint64(preimage, sequenceNumber)
	sum := sha3.Sum256(preimage)
	return sum[:]
}

// DeriveResourceAddress computes the address of a resource account:
// sha3-256(source || seed || 0xFF). The trailing separator keeps resource
// addresses out of every authentication scheme's derivation space.
func DeriveResourceAddress(source Address, seed []byte) Address {
	preimage := make([]byte, 0, AddressLength+len(seed)+1)
	preimage = append(preimage, source.Bytes()...)
	preimage = append(preimage, seed...)
	preimage = append(preimage, ResourceDomainSeparator)
	sum := sha3.Sum256(preimage)
	return Address(sum)
}
