package content

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// codecMagic marks a frame produced by Codec.Encode. The flags byte that
// follows records which transforms were applied, so Decode reverses exactly
// what Encode did regardless of the current configuration.
const codecMagic = 0xA7

const (
	flagCompressed = 1 << 0
	flagEncrypted  = 1 << 1
)

var (
	// ErrNotEncoded is returned when Decode is handed bytes that do not
	// carry a codec frame header.
	ErrNotEncoded = errors.New("data does not carry a codec frame")

	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// Codec applies optional transparent zstd compression and XChaCha20-Poly1305
// encryption to object bytes before persistence, and reverses both on
// retrieval. A Codec with no transforms enabled passes bytes through with a
// minimal frame header so the round-trip law holds in every configuration.
type Codec struct {
	compress bool
	aead     cipher.AEAD
}

// NewCodec builds a codec. When secret is non-empty a 256-bit encryption key
// is derived from it with HKDF-SHA256 and encryption is enabled.
func NewCodec(compress bool, secret []byte) (*Codec, error) {
	c := &Codec{compress: compress}

	if len(secret) > 0 {
		key := make([]byte, chacha20poly1305.KeySize)
		kdf := hkdf.New(sha256.New, secret, nil, []byte("storage object key"))
		if _, err := io.ReadFull(kdf, key); err != nil {
			return nil, fmt.Errorf("failed to derive encryption key: %w", err)
		}

		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cipher: %w", err)
		}
		c.aead = aead
	}

	return c, nil
}

// Compressing reports whether compression is enabled.
func (c *Codec) Compressing() bool { return c.compress }

// Encrypting reports whether encryption is enabled.
func (c *Codec) Encrypting() bool { return c.aead != nil }

// Encode applies the configured transforms and prepends the frame header.
// Compression runs before encryption.
func (c *Codec) Encode(data []byte) ([]byte, error) {
	var flags byte
	payload := data

	if c.compress {
		payload = zstdEncoder.EncodeAll(payload, nil)
		flags |= flagCompressed
	}

	if c.aead != nil {
		nonce := make([]byte, c.aead.NonceSize())
		if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
			return nil, fmt.Errorf("failed to generate nonce: %w", err)
		}
		payload = c.aead.Seal(nonce, nonce, payload, nil)
		flags |= flagEncrypted
	}

	framed := make([]byte, 0, len(payload)+2)
	framed = append(framed, codecMagic, flags)
	framed = append(framed, payload...)
	return framed, nil
}

// Decode reverses the transforms recorded in the frame header.
func (c *Codec) Decode(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != codecMagic {
		return nil, ErrNotEncoded
	}

	flags := data[1]
	payload := data[2:]

	if flags&flagEncrypted != 0 {
		if c.aead == nil {
			return nil, errors.New("encrypted frame but no encryption key configured")
		}
		if len(payload) < c.aead.NonceSize() {
			return nil, errors.New("encrypted frame too short")
		}
		nonce, sealed := payload[:c.aead.NonceSize()], payload[c.aead.NonceSize():]
		plain, err := c.aead.Open(nil, nonce, sealed, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt frame: %w", err)
		}
		payload = plain
	}

	if flags&flagCompressed != 0 {
		plain, err := zstdDecoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress frame: %w", err)
		}
		payload = plain
	}

	return payload, nil
}
