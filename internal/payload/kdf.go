package payload

import "golang.org/x/crypto/argon2"

// kdfSalt is fixed, per spec.md §4.11 ("a passphrase is stretched with a
// memory-hard KDF against a fixed salt"). A fixed salt means two
// deployments using the same passphrase derive the same key, which is the
// intended behavior here — the salt is not meant to be deployment-unique,
// the passphrase is.
var kdfSalt = []byte("cuemap-master-key-kdf-salt-v1")

// DeriveKey stretches passphrase into a 32-byte key using Argon2id.
func DeriveKey(passphrase string) []byte {
	const (
		timeCost    = 1
		memoryCostKiB = 64 * 1024
		threads     = 4
		keyLen      = 32
	)
	return argon2.IDKey([]byte(passphrase), kdfSalt, timeCost, memoryCostKiB, threads, keyLen)
}
