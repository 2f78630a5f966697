// Package encryption seals small binary values, such as voice-profile
// embeddings, before they are written to the database.
//
// Two AEAD ciphers are available: AES-256-GCM (default) and
// ChaCha20-Poly1305. The key is derived from a passphrase with SHA-256.
// Sealed values carry a short marker so values written before encryption
// was enabled are still readable.
//
// # Usage
//
//	s, err := encryption.New(encryption.Config{Enabled: true, Key: secret})
//	sealed, err := s.Seal(plain)
//	plain, err := s.Open(sealed)
package encryption
