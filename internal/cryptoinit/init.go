// Package cryptoinit initializes the crypto package with implementations
// from subpackages to avoid circular dependencies.
package cryptoinit

import (
	"github.com/sage-x-project/lockaudit/crypto"
	"github.com/sage-x-project/lockaudit/crypto/keys"
	"github.com/sage-x-project/lockaudit/crypto/storage"
)

func init() {
	crypto.SetKeyGenerators(
		func() (crypto.KeyPair, error) { return keys.GenerateEd25519KeyPair() },
		func() (crypto.KeyPair, error) { return keys.GenerateECDSAP256KeyPair() },
	)

	crypto.SetStorageConstructors(
		func() crypto.KeyStorage { return storage.NewMemoryKeyStorage() },
	)
}
