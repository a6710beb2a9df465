package config

import (
	"crypto/subtle"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/alfredjeanlab/vesting/internal/model"
)

// Identity binds a bearer token to a ledger address.
type Identity struct {
	Name    string        `toml:"name"`
	Token   string        `toml:"token"`
	Address model.Address `toml:"address"`
}

// Keyring is the set of identities allowed to call the server. An empty
// keyring disables authentication.
//
// File format:
//
//	[[identity]]
//	name = "admin"
//	token = "vtk_..."
//	address = "0xf39f..."
type Keyring struct {
	Identities []Identity `toml:"identity"`
}

// LoadKeyring reads a keyring file. An empty path yields an empty keyring.
func LoadKeyring(path string) (*Keyring, error) {
	k := &Keyring{}
	if path == "" {
		return k, nil
	}
	if _, err := toml.DecodeFile(path, k); err != nil {
		return nil, fmt.Errorf("reading keyring %s: %w", path, err)
	}
	seen := make(map[string]bool, len(k.Identities))
	for i, id := range k.Identities {
		if id.Token == "" {
			return nil, fmt.Errorf("keyring %s: identity %d (%q) has no token", path, i, id.Name)
		}
		if id.Address.IsZero() {
			return nil, fmt.Errorf("keyring %s: identity %d (%q) has no address", path, i, id.Name)
		}
		if seen[id.Token] {
			return nil, fmt.Errorf("keyring %s: duplicate token for identity %q", path, id.Name)
		}
		seen[id.Token] = true
	}
	return k, nil
}

// Save writes the keyring to path with owner-only permissions.
func (k *Keyring) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(k); err != nil {
		f.Close()
		return fmt.Errorf("writing keyring: %w", err)
	}
	return f.Close()
}

// Enabled reports whether the keyring has any identities.
func (k *Keyring) Enabled() bool {
	return k != nil && len(k.Identities) > 0
}

// Lookup returns the identity owning token. Every entry is compared so the
// time taken does not depend on which entry matches.
func (k *Keyring) Lookup(token string) (Identity, bool) {
	var (
		found Identity
		ok    bool
	)
	if k == nil || token == "" {
		return found, false
	}
	for _, id := range k.Identities {
		if subtle.ConstantTimeCompare([]byte(token), []byte(id.Token)) == 1 {
			found, ok = id, true
		}
	}
	return found, ok
}

// Add appends an identity, replacing any existing one with the same name.
func (k *Keyring) Add(id Identity) {
	for i := range k.Identities {
		if k.Identities[i].Name == id.Name {
			k.Identities[i] = id
			return
		}
	}
	k.Identities = append(k.Identities, id)
}
