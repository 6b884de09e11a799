package infra

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

const (
	keyFileName = ".key"
	keySize     = 32 // 256-bit SQLCipher key
)

// KeyFile stores the history database key next to the database, base64
// encoded with 0600 permissions. PORTALD_DB_KEY overrides it; the file
// is for unattended deployments that never see the env.
type KeyFile struct {
	path string
}

// NewKeyFile returns the key file for a data directory.
func NewKeyFile(dataDir string) *KeyFile {
	return &KeyFile{path: filepath.Join(dataDir, keyFileName)}
}

// Exists reports whether a key has been stored.
func (k *KeyFile) Exists() bool {
	_, err := os.Stat(k.path)
	return err == nil
}

// Load reads and decodes the stored key.
func (k *KeyFile) Load() ([]byte, error) {
	encoded, err := os.ReadFile(k.path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	key, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode key file: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("key file holds %d bytes, want %d", len(key), keySize)
	}
	return key, nil
}

// Store writes the key with restricted permissions.
func (k *KeyFile) Store(key []byte) error {
	if len(key) != keySize {
		return fmt.Errorf("key is %d bytes, want %d", len(key), keySize)
	}
	if err := os.MkdirAll(filepath.Dir(k.path), 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(k.path, []byte(encoded), 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

// Ensure returns the stored key, generating and storing a fresh one on
// first run.
func (k *KeyFile) Ensure() ([]byte, error) {
	if k.Exists() {
		return k.Load()
	}
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := k.Store(key); err != nil {
		return nil, err
	}
	return key, nil
}

// ResolveDBKey picks the history database key: the env-provided hex key
// when set, otherwise the key file (created on first run). The returned
// key is raw bytes for the SQLCipher pragma.
func ResolveDBKey(envKey, dataDir string) ([]byte, error) {
	if envKey != "" {
		key, err := hex.DecodeString(envKey)
		if err != nil {
			return nil, fmt.Errorf("decode configured database key: %w", err)
		}
		if len(key) != keySize {
			return nil, fmt.Errorf("configured database key holds %d bytes, want %d", len(key), keySize)
		}
		return key, nil
	}
	return NewKeyFile(dataDir).Ensure()
}
