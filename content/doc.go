// Package content provides the shared helpers every storage adapter and the
// storage manager compose with: deterministic key generation, filename and
// size validation, SHA-256 content hashing, transparent compression and
// symmetric encryption, and MIME detection combining extension lookup with
// binary-signature sniffing.
package content
