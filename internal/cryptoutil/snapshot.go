package cryptoutil

import (
	"io"

	"github.com/minio/sio"
)

// SealSnapshot wraps w so that everything written is DARE-encrypted. The
// returned writer must be closed to flush the final package.
func SealSnapshot(w io.Writer, key []byte) (io.WriteCloser, error) {
	return sio.EncryptWriter(w, sio.Config{Key: key, MinVersion: sio.Version20})
}

// OpenSnapshot decrypts a stream written by SealSnapshot. Tampered or
// wrongly keyed input fails on the first read.
func OpenSnapshot(r io.Reader, key []byte) (io.Reader, error) {
	return sio.DecryptReader(r, sio.Config{Key: key, MinVersion: sio.Version20})
}

// IsSealed reports whether head starts with a DARE 2.0 package header: the
// version byte followed by a known cipher suite. The version byte alone is
// an ASCII space, so both bytes are needed to tell a sealed snapshot from
// JSON.
func IsSealed(head []byte) bool {
	if len(head) < 2 || head[0] != sio.Version20 {
		return false
	}
	return head[1] == sio.AES_256_GCM || head[1] == sio.CHACHA20_POLY1305
}
