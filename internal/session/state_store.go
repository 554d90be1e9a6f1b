package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"signdesk/go-client/internal/securestore"
	"signdesk/go-client/pkg/models"
)

// Durable entry keys. Both entries are removed together on logout.
const (
	userEntryKey  = "auth:user"
	tokenEntryKey = "auth:token"
)

// StateStore persists the session as two encrypted files under the
// data directory. With no directory or secret configured, persistence
// is disabled and every operation is a no-op.
type StateStore struct {
	dir    string
	secret string
}

func (p *StateStore) Configure(dir, secret string) {
	p.dir = strings.TrimSpace(dir)
	p.secret = strings.TrimSpace(secret)
}

func (p *StateStore) enabled() bool {
	return p.dir != "" && p.secret != ""
}

func (p *StateStore) entryPath(key string) string {
	return filepath.Join(p.dir, strings.ReplaceAll(key, ":", "_")+".enc")
}

func (p *StateStore) SaveUser(user models.User) error {
	if !p.enabled() {
		return nil
	}
	payload, err := json.Marshal(persistedUser{Version: 1, User: user})
	if err != nil {
		return err
	}
	return p.writeEntry(userEntryKey, payload)
}

func (p *StateStore) SaveToken(token string) error {
	if !p.enabled() {
		return nil
	}
	payload, err := json.Marshal(persistedToken{Version: 1, Token: token})
	if err != nil {
		return err
	}
	return p.writeEntry(tokenEntryKey, payload)
}

// Load reads both entries. Missing or corrupt data yields zero values,
// never an error: a rotted session file must not break startup.
func (p *StateStore) Load() (*models.User, string) {
	if !p.enabled() {
		return nil, ""
	}
	var user *models.User
	if raw := p.readEntry(userEntryKey); raw != nil {
		var state persistedUser
		if err := json.Unmarshal(raw, &state); err == nil && state.Version == 1 && strings.TrimSpace(state.User.ID) != "" {
			u := state.User
			user = &u
		}
	}
	token := ""
	if raw := p.readEntry(tokenEntryKey); raw != nil {
		var state persistedToken
		if err := json.Unmarshal(raw, &state); err == nil && state.Version == 1 {
			token = state.Token
		}
	}
	return user, token
}

// Clear removes both entries unconditionally.
func (p *StateStore) Clear() {
	if p.dir == "" {
		return
	}
	_ = os.Remove(p.entryPath(userEntryKey))
	_ = os.Remove(p.entryPath(tokenEntryKey))
}

// ClearToken removes only the credential entry; the persisted user
// record stays intact.
func (p *StateStore) ClearToken() {
	if p.dir == "" {
		return
	}
	_ = os.Remove(p.entryPath(tokenEntryKey))
}

func (p *StateStore) writeEntry(key string, payload []byte) error {
	encrypted, err := securestore.Encrypt(p.secret, payload)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p.dir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(p.entryPath(key), encrypted, 0o600)
}

func (p *StateStore) readEntry(key string) []byte {
	raw, err := os.ReadFile(p.entryPath(key))
	if err != nil {
		return nil
	}
	plaintext, err := securestore.Decrypt(p.secret, raw)
	if err != nil {
		return nil
	}
	return plaintext
}

type persistedUser struct {
	Version int         `json:"version"`
	User    models.User `json:"user"`
}

type persistedToken struct {
	Version int    `json:"version"`
	Token   string `json:"token"`
}
