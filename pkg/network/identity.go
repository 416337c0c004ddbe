package network

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/libp2p/go-libp2p/core/crypto"
)

const identityFileName = "identity.key"

// LoadIdentity returns the key stored in dataDir, generating and saving one
// on first use. An empty dataDir yields a fresh key that is never persisted.
func LoadIdentity(dataDir string) (crypto.PrivKey, error) {
	if dataDir == "" {
		priv, _, err := crypto.GenerateEd25519Key(nil)
		return priv, err
	}

	keyPath := filepath.Join(dataDir, identityFileName)
	keyBytes, err := os.ReadFile(keyPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		priv, _, err := crypto.GenerateEd25519Key(nil)
		if err != nil {
			return nil, err
		}
		if err := SaveIdentity(priv, dataDir); err != nil {
			return nil, err
		}
		return priv, nil
	}

	return crypto.UnmarshalPrivateKey(keyBytes)
}

// SaveIdentity writes key to dataDir.
func SaveIdentity(key crypto.PrivKey, dataDir string) error {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return err
	}
	keyBytes, err := crypto.MarshalPrivateKey(key)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dataDir, identityFileName), keyBytes, 0600)
}

// RendezvousIdentity is the well-known key of the rendezvous point: an
// ed25519 key generated from an all-zero seed.
func RendezvousIdentity() (crypto.PrivKey, error) {
	priv, _, err := crypto.GenerateEd25519Key(bytes.NewReader(make([]byte, 32)))
	if err != nil {
		return nil, fmt.Errorf("failed to derive rendezvous identity: %w", err)
	}
	return priv, nil
}
