package crypto

// This file provides wrapper functions implemented by the crypto/keys and
// crypto/storage subpackages, wired in by internal/cryptoinit to avoid a
// circular import back into this package.

var (
	// generateEd25519KeyPair is the implementation function for Ed25519 key generation.
	generateEd25519KeyPair func() (KeyPair, error)

	// generateECDSAP256KeyPair is the implementation function for ECDSA P-256 key generation.
	generateECDSAP256KeyPair func() (KeyPair, error)

	// newMemoryKeyStorage is the implementation function for memory storage creation.
	newMemoryKeyStorage func() KeyStorage
)

// SetKeyGenerators sets the key generation functions.
func SetKeyGenerators(ed25519Gen, ecdsaP256Gen func() (KeyPair, error)) {
	generateEd25519KeyPair = ed25519Gen
	generateECDSAP256KeyPair = ecdsaP256Gen
}

// SetStorageConstructors sets the storage constructor functions.
func SetStorageConstructors(memoryStorage func() KeyStorage) {
	newMemoryKeyStorage = memoryStorage
}

// GenerateEd25519KeyPair generates a new Ed25519 key pair.
func GenerateEd25519KeyPair() (KeyPair, error) {
	if generateEd25519KeyPair == nil {
		panic("Ed25519 key generator not initialized")
	}
	return generateEd25519KeyPair()
}

// GenerateECDSAP256KeyPair generates a new ECDSA P-256 key pair.
func GenerateECDSAP256KeyPair() (KeyPair, error) {
	if generateECDSAP256KeyPair == nil {
		panic("ECDSA P-256 key generator not initialized")
	}
	return generateECDSAP256KeyPair()
}

// NewMemoryKeyStorage creates a new memory key storage.
func NewMemoryKeyStorage() KeyStorage {
	if newMemoryKeyStorage == nil {
		panic("memory key storage constructor not initialized")
	}
	return newMemoryKeyStorage()
}
