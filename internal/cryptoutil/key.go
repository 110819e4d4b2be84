package cryptoutil

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// KeySize is the length of every key this package accepts: AES-256 for
// config files and DARE for snapshots.
const KeySize = 32

var (
	ErrEmptyKey  = errors.New("encryption key is empty")
	ErrKeyLength = errors.New("invalid key length")
)

// ParseKey decodes a key written as "base64:...", "hex:..." or bare. A bare
// value is tried as base64 first, then as hex.
func ParseKey(key string) ([]byte, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return nil, ErrEmptyKey
	}

	var (
		data []byte
		err  error
	)
	switch {
	case strings.HasPrefix(trimmed, "base64:"):
		data, err = base64.StdEncoding.DecodeString(strings.TrimPrefix(trimmed, "base64:"))
	case strings.HasPrefix(trimmed, "hex:"):
		data, err = hex.DecodeString(strings.TrimPrefix(trimmed, "hex:"))
	default:
		// 64 hex digits are also valid base64 (48 bytes), so hex gets a turn
		// whenever base64 does not yield a full key.
		data, err = base64.StdEncoding.DecodeString(trimmed)
		if err != nil || len(data) != KeySize {
			if hexData, hexErr := hex.DecodeString(trimmed); hexErr == nil {
				data, err = hexData, nil
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(data) != KeySize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrKeyLength, len(data), KeySize)
	}
	return data, nil
}
