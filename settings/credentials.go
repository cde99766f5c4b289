// Package settings provides persistent storage for convkit user settings —
// backend API keys.
//
// Keys are stored in the XDG data directory:
//
//	$XDG_DATA_HOME/convkit/auth.json  (default: ~/.local/share/convkit/auth.json)
//
// The file is a JSON object keyed by backend kind. File permissions are 0600
// (owner read/write only).
//
// Lookup order for API keys at run time:
//  1. --api-key flag (highest priority)
//  2. CONVKIT_API_KEY environment variable
//  3. This credential store
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	dataDirName = "convkit"
	fileName    = "auth.json"
)

// Info is the entry stored per backend kind in auth.json.
type Info struct {
	// Key is the API key.
	Key string `json:"key"`
	// BaseURL optionally overrides the backend endpoint.
	BaseURL string `json:"baseUrl,omitempty"`
}

// Store holds all backend credentials, keyed by backend kind.
type Store map[string]*Info

// ---------------------------------------------------------------------------
// File path
// ---------------------------------------------------------------------------

// dataDir returns the XDG data directory for convkit.
// Respects $XDG_DATA_HOME (falls back to ~/.local/share).
func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

func filePath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// FilePath returns the auth.json file path for display purposes.
func FilePath() string {
	p, err := filePath()
	if err != nil {
		return ""
	}
	return p
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// Load reads the credential store from disk.
// Returns an empty store if the file doesn't exist or is invalid.
func Load() Store {
	path, err := filePath()
	if err != nil {
		return make(Store)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return make(Store)
	}

	var store Store
	if err := json.Unmarshal(data, &store); err != nil {
		return make(Store)
	}
	if store == nil {
		return make(Store)
	}

	return store
}

// Save writes the credential store to disk with 0600 permissions.
func Save(store Store) error {
	path, err := filePath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}

	return nil
}

// ---------------------------------------------------------------------------
// API key helpers
// ---------------------------------------------------------------------------

// SetAPIKey stores an API key for a backend kind (upsert).
func SetAPIKey(kind, key string) error {
	store := Load()
	info := store[kind]
	if info == nil {
		info = &Info{}
	}
	info.Key = key
	store[kind] = info
	return Save(store)
}

// GetAPIKey retrieves the stored API key for a backend kind.
// Returns empty string if not found.
func GetAPIKey(kind string) string {
	info := Load()[kind]
	if info == nil {
		return ""
	}
	return info.Key
}

// Remove deletes credentials for a backend kind.
func Remove(kind string) error {
	store := Load()
	if _, ok := store[kind]; !ok {
		return nil
	}
	delete(store, kind)
	return Save(store)
}

// MaskKey returns a masked version of a key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
