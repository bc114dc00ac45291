// Package crypto seals and opens note content with AES-256-GCM using a key
// derived from the owner's stored password hash and per-user salt.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// keyLen is the AES-256 key length in bytes.
const keyLen = 32

// saltLen is the per-user salt length in bytes.
const saltLen = 16

// kdfIterations is the PBKDF2 iteration count. Changing it invalidates every
// stored ciphertext, so treat it as part of the storage format.
const kdfIterations = 100_000

// GenerateSalt returns a fresh random per-user salt, hex-encoded.
func GenerateSalt() (string, error) {
	b := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// DeriveKey derives the content key from the stored password hash and salt
// via PBKDF2-HMAC-SHA256. Same inputs always yield the same key.
func DeriveKey(passwordHash, salt string) ([]byte, error) {
	if passwordHash == "" {
		return nil, errors.New("empty password hash")
	}
	if salt == "" {
		return nil, errors.New("empty salt")
	}
	return pbkdf2.Key([]byte(passwordHash), []byte(salt), kdfIterations, keyLen, sha256.New), nil
}

// Encrypt seals plain with AES-GCM under key. A fresh random nonce is
// generated per call and returned alongside the ciphertext; it must be stored
// with the ciphertext and never reused with the same key.
func Encrypt(plain, key []byte) ([]byte, []byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, err
	}
	out := gcm.Seal(nil, nonce, plain, nil)
	return out, nonce, nil
}

// Decrypt opens ciphertext with AES-GCM. It fails when the tag does not
// verify: tampered data or a wrong key never yield incorrect plaintext.
func Decrypt(ciphertext, nonce, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, errors.New("invalid nonce size")
	}
	return gcm.Open(nil, nonce, ciphertext, nil)
}
