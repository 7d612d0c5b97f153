package sealed

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Algorithm identifies the AEAD used to seal entries.
type Algorithm string

const (
	AlgorithmAESGCM   Algorithm = "aes-gcm"
	AlgorithmChaCha20 Algorithm = "chacha20-poly1305"
)

const (
	keyLen  = 32
	saltLen = 16
)

var errCiphertextTooShort = errors.New("sealed: ciphertext too short")

// preferredAlgorithm picks AES-GCM where Go uses hardware AES, and
// ChaCha20-Poly1305 elsewhere.
func preferredAlgorithm() Algorithm {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return AlgorithmAESGCM
	default:
		return AlgorithmChaCha20
	}
}

func newAEAD(algo Algorithm, key []byte) (cipher.AEAD, error) {
	if len(key) != keyLen {
		return nil, fmt.Errorf("sealed: key must be %d bytes, got %d", keyLen, len(key))
	}
	switch algo {
	case AlgorithmAESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case AlgorithmChaCha20:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("sealed: unknown algorithm %q", algo)
	}
}

// seal encrypts plaintext and prepends a random nonce.
func seal(aead cipher.AEAD, plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("sealed: read nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

// open reverses seal.
func open(aead cipher.AEAD, ciphertext, additionalData []byte) ([]byte, error) {
	if len(ciphertext) < aead.NonceSize()+aead.Overhead() {
		return nil, errCiphertextTooShort
	}
	nonce := ciphertext[:aead.NonceSize()]
	return aead.Open(nil, nonce, ciphertext[aead.NonceSize():], additionalData)
}

// KDFParams are the Argon2id parameters used to derive the master key.
type KDFParams struct {
	Time      uint32 `json:"time"`
	MemoryKiB uint32 `json:"memory_kib"`
	Threads   uint8  `json:"threads"`
}

// DefaultKDFParams returns interactive-strength Argon2id parameters.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Time:      3,
		MemoryKiB: 64 * 1024,
		Threads:   4,
	}
}

func (p KDFParams) deriveMaster(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, p.Time, p.MemoryKiB, p.Threads, keyLen)
}

func newSalt() ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("sealed: generate salt: %w", err)
	}
	return salt, nil
}

// deriveSubkey derives a purpose-bound key from the master key.
func deriveSubkey(master []byte, info string) ([]byte, error) {
	reader := hkdf.New(sha256.New, master, nil, []byte(info))
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("sealed: derive subkey: %w", err)
	}
	return key, nil
}
