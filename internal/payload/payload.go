// Package payload implements the memory payload framing described in
// spec.md §4.2 and §4.11: compression (always) with optional authenticated
// encryption, distinguished by a 1-byte magic tag so that unencrypted and
// encrypted payloads can coexist during a key-rotation migration.
package payload

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	tagCompressedOnly byte = 'C'
	tagEncrypted      byte = 'E'

	keySize = 32
)

// Create compresses content and, if key is non-nil, encrypts the result
// with XChaCha20-Poly1305 under key, prepending a random nonce. Returns the
// tagged byte sequence ready to store on a Memory record.
func Create(content string, key []byte) ([]byte, error) {
	compressed, err := compress([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompressionFailed, err)
	}

	if key == nil {
		out := make([]byte, 0, 1+len(compressed))
		out = append(out, tagCompressedOnly)
		out = append(out, compressed...)
		return out, nil
	}

	if len(key) != keySize {
		return nil, fmt.Errorf("payload: key must be %d bytes, got %d", keySize, len(key))
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("payload: constructing AEAD: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(randReader, nonce); err != nil {
		return nil, fmt.Errorf("payload: generating nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, compressed, nil)

	out := make([]byte, 0, 1+len(nonce)+len(ciphertext))
	out = append(out, tagEncrypted)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

// Access reverses Create, returning the original content string.
//
//   - Tagged 'C': decompress, ignoring key even if one is configured.
//   - Tagged 'E' with a key: authenticated-decrypt then decompress.
//   - Tagged 'E' with no key: ErrMissingKey.
//   - Unknown tag, truncated framing, failed decrypt, or failed
//     decompress: the corresponding error kind.
func Access(encoded []byte, key []byte) (string, error) {
	if len(encoded) < 1 {
		return "", ErrCorruptPayload
	}

	tag, body := encoded[0], encoded[1:]

	switch tag {
	case tagCompressedOnly:
		plain, err := decompress(body)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCompressionFailed, err)
		}
		return string(plain), nil

	case tagEncrypted:
		if key == nil {
			return "", ErrMissingKey
		}
		if len(key) != keySize {
			return "", fmt.Errorf("payload: key must be %d bytes, got %d", keySize, len(key))
		}

		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return "", fmt.Errorf("payload: constructing AEAD: %w", err)
		}
		if len(body) < aead.NonceSize() {
			return "", ErrCorruptPayload
		}
		nonce, ciphertext := body[:aead.NonceSize()], body[aead.NonceSize():]

		compressed, err := aead.Open(nil, nonce, ciphertext, nil)
		if err != nil {
			return "", ErrAuthenticationFailed
		}

		plain, err := decompress(compressed)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCompressionFailed, err)
		}
		return string(plain), nil

	default:
		return "", ErrCorruptPayload
	}
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
