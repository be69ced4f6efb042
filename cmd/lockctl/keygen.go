package main

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	sagecrypto "github.com/sage-x-project/lockaudit/crypto"
	_ "github.com/sage-x-project/lockaudit/internal/cryptoinit" // wires crypto's generator/storage indirection
)

var (
	keygenType  string
	keygenOut   string
	keygenStore bool
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a signing key pair for a device or delegate",
	Long: `Generate a key pair and write its private key as PEM to --out.

Supported types:
  - ecdsa-p256: used for a device's publicKey / delegationKey (client
    signatures over unlock and pairing envelopes)
  - ed25519: used for a device's auditPublicKey if simulating an audit
    co-signer keypair locally`,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVarP(&keygenType, "type", "t", "ecdsa-p256", "key type (ecdsa-p256, ed25519)")
	keygenCmd.Flags().StringVarP(&keygenOut, "out", "o", "", "private key output file (PEM, required)")
	keygenCmd.Flags().BoolVar(&keygenStore, "store", false, "also stash the generated key pair in the manager's in-memory store for this run, and print the resulting key index")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	if keygenOut == "" {
		return fmt.Errorf("--out is required")
	}

	var keyType sagecrypto.KeyType
	switch keygenType {
	case "ecdsa-p256":
		keyType = sagecrypto.KeyTypeECDSAP256
	case "ed25519":
		keyType = sagecrypto.KeyTypeEd25519
	default:
		return fmt.Errorf("unsupported key type: %s", keygenType)
	}

	manager := sagecrypto.NewManager()
	kp, err := manager.GenerateKeyPair(keyType)
	if err != nil {
		return fmt.Errorf("generate %s key pair: %w", keygenType, err)
	}

	var privDER, pubSPKI []byte
	switch keyType {
	case sagecrypto.KeyTypeECDSAP256:
		priv := kp.PrivateKey().(*ecdsa.PrivateKey)
		privDER, err = x509.MarshalPKCS8PrivateKey(priv)
		if err != nil {
			return fmt.Errorf("marshal private key: %w", err)
		}
		pubSPKI, err = x509.MarshalPKIXPublicKey(&priv.PublicKey)
		if err != nil {
			return fmt.Errorf("marshal public key: %w", err)
		}
	case sagecrypto.KeyTypeEd25519:
		priv := kp.PrivateKey().(ed25519.PrivateKey)
		privDER, err = x509.MarshalPKCS8PrivateKey(priv)
		if err != nil {
			return fmt.Errorf("marshal private key: %w", err)
		}
		pubSPKI = []byte(priv.Public().(ed25519.PublicKey))
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	if err := os.WriteFile(keygenOut, pemBytes, 0600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}

	fmt.Printf("Private key written to: %s\n", keygenOut)
	fmt.Printf("Key ID: %s\n", kp.ID())
	if keyType == sagecrypto.KeyTypeEd25519 {
		fmt.Printf("Public key (raw, base64): %s\n", base64.StdEncoding.EncodeToString(pubSPKI))
	} else {
		fmt.Printf("Public key (SPKI DER, base64): %s\n", base64.StdEncoding.EncodeToString(pubSPKI))
	}

	if keygenStore {
		if err := manager.StoreKeyPair(kp); err != nil {
			return fmt.Errorf("store key pair: %w", err)
		}
		ids, err := manager.ListKeyPairs()
		if err != nil {
			return fmt.Errorf("list key pairs: %w", err)
		}
		fmt.Printf("Manager store now holds: %v\n", ids)
	}
	return nil
}
