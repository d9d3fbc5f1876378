package domain

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"unicode/utf8"

	"github.com/mr-tron/base58"
	"github.com/tyler-smith/go-bip39"
)

// Keypair is an ed25519 signing identity with base58-encoded keys. The
// private key is the 32-byte ed25519 seed, never persisted by the daemon.
type Keypair struct {
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

// NewKeypair derives a signing keypair from a seed string. A non-empty seed
// is stretched through the bip39 mnemonic-to-seed function and truncated to
// 32 bytes, so the same seed always yields the same keypair across processes.
// An empty seed yields a fresh random keypair on every call.
func NewKeypair(seed string) (Keypair, error) {
	if seed == "" {
		return randomKeypair()
	}
	if !utf8.ValidString(seed) {
		return Keypair{}, fmt.Errorf("%w: seed is not valid utf-8", ErrInvalidSeed)
	}

	stretched := bip39.NewSeed(seed, "")
	key := ed25519.NewKeyFromSeed(stretched[:ed25519.SeedSize])
	return encodeKeypair(key), nil
}

func randomKeypair() (Keypair, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Keypair{}, fmt.Errorf("generate keypair: %w", err)
	}
	return encodeKeypair(key), nil
}

func encodeKeypair(key ed25519.PrivateKey) Keypair {
	return Keypair{
		PublicKey:  base58.Encode(key.Public().(ed25519.PublicKey)),
		PrivateKey: base58.Encode(key.Seed()),
	}
}

// DecodePrivateKey rebuilds the full ed25519 private key from its base58
// seed encoding.
func DecodePrivateKey(encoded string) (ed25519.PrivateKey, error) {
	buf, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(buf) != ed25519.SeedSize {
		return nil, fmt.Errorf("decode private key: want %d bytes, got %d", ed25519.SeedSize, len(buf))
	}
	return ed25519.NewKeyFromSeed(buf), nil
}

// DecodePublicKey decodes a base58 ed25519 public key.
func DecodePublicKey(encoded string) (ed25519.PublicKey, error) {
	buf, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	if len(buf) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("decode public key: want %d bytes, got %d", ed25519.PublicKeySize, len(buf))
	}
	return ed25519.PublicKey(buf), nil
}
