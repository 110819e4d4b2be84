package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
)

// Encrypted config layout: magic | version (uint16 BE) | nonce | GCM payload.
const (
	configMagic   = "KDB1"
	configVersion = uint16(1)
	nonceSize     = 12
	headerSize    = len(configMagic) + 2 + nonceSize
)

var ErrConfigHeader = errors.New("not an encrypted kdb config")

// EncryptConfig seals a config file body under key.
func EncryptConfig(plain, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, headerSize, headerSize+len(plain)+aead.Overhead())
	copy(out, configMagic)
	binary.BigEndian.PutUint16(out[len(configMagic):], configVersion)
	nonce := out[len(configMagic)+2 : headerSize]
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(out, nonce, plain, nil), nil
}

// DecryptConfig reverses EncryptConfig.
func DecryptConfig(ciphertext, key []byte) ([]byte, error) {
	if len(ciphertext) < headerSize || string(ciphertext[:len(configMagic)]) != configMagic {
		return nil, ErrConfigHeader
	}
	if ver := binary.BigEndian.Uint16(ciphertext[len(configMagic):]); ver != configVersion {
		return nil, fmt.Errorf("unsupported config version %d", ver)
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := ciphertext[len(configMagic)+2 : headerSize]
	plain, err := aead.Open(nil, nonce, ciphertext[headerSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	return plain, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
