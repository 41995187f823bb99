package evidence

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const hkdfInfo = "onlycation/evidence/v1"

var ErrEmptyKey = errors.New("evidence key is empty")

// Vault шифрует доказательства посещения XChaCha20-Poly1305; ссылка на файл идёт в associated data
type Vault struct {
	aead cipher.AEAD
}

func NewVault(secret string) (*Vault, error) {
	if secret == "" {
		return nil, ErrEmptyKey
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive evidence key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Seal возвращает nonce и шифротекст
func (v *Vault) Seal(plaintext []byte, ref string) ([]byte, []byte, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	return nonce, v.aead.Seal(nil, nonce, plaintext, []byte(ref)), nil
}

func (v *Vault) Open(nonce, ciphertext []byte, ref string) ([]byte, error) {
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, []byte(ref))
	if err != nil {
		return nil, fmt.Errorf("decrypt evidence: %w", err)
	}
	return plaintext, nil
}
