package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"signdesk/go-client/internal/contracts"
	"signdesk/go-client/pkg/models"
)

// Credentials is the login input. Email is normalized (trim, lowercase)
// before transmission; the password travels untouched.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Store owns the single mutable session of the process. Every other
// component reads identity and credential through it; all mutation goes
// through Login, AdoptToken, Logout and Restore so no consumer can
// observe a user without a matching derived user id.
type Store struct {
	mu       sync.RWMutex
	user     *models.User
	userID   string
	token    string
	watchers []func(userID string)

	baseURL string
	client  *http.Client
	state   *StateStore
	logger  *slog.Logger
}

type Options struct {
	BaseURL string
	Client  *http.Client
	State   *StateStore
	Logger  *slog.Logger
}

func NewStore(opts Options) *Store {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  client,
		state:   opts.State,
		logger:  logger,
	}
}

// Snapshot returns a copy of the current session. The user pointer is
// cloned so callers cannot mutate shared state.
func (s *Store) Snapshot() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.Session{
		User:   cloneUser(s.user),
		UserID: s.userID,
		Token:  s.token,
	}
}

func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// IsAdmin reports whether the authenticated user carries the admin
// role. Unauthenticated sessions are never admin.
func (s *Store) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.Role == "admin"
}

// Subscribe registers a watcher invoked with the new user id after
// every identity change (login, logout, restore). The returned func
// removes the watcher.
func (s *Store) Subscribe(fn func(userID string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
	idx := len(s.watchers) - 1
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.watchers) {
			s.watchers[idx] = nil
		}
	}
}

// Login authenticates against the auth backend and adopts the returned
// user record. The backend may wrap the record in {user: ...} or return
// it flat; a bearer token is adopted when the payload carries one.
func (s *Store) Login(ctx context.Context, creds Credentials) (models.Session, error) {
	payload := Credentials{
		Email:    strings.ToLower(strings.TrimSpace(creds.Email)),
		Password: creds.Password,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return models.Session{}, contracts.WrapError(contracts.CategoryAuth, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/login", bytes.NewReader(body))
	if err != nil {
		return models.Session{}, contracts.WrapError(contracts.CategoryAuth, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return models.Session{}, contracts.WrapError(contracts.CategoryAuth, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Session{}, contracts.NewError(contracts.CategoryAuth, backendMessage(raw, resp.Status))
	}

	user, token, err := decodeLoginPayload(raw)
	if err != nil {
		return models.Session{}, err
	}

	s.mu.Lock()
	s.user = user
	s.userID = user.ID
	if token != "" {
		s.token = token
	}
	session := models.Session{User: cloneUser(s.user), UserID: s.userID, Token: s.token}
	s.mu.Unlock()

	if s.state != nil {
		if err := s.state.SaveUser(*user); err != nil {
			s.logger.Warn("session persist failed", "error", err)
		}
		if token != "" {
			if err := s.state.SaveToken(token); err != nil {
				s.logger.Warn("token persist failed", "error", err)
			}
		}
	}
	s.logger.Info("login succeeded", "user_id", session.UserID)
	s.notify(session.UserID)
	return session, nil
}

// AdoptToken installs a bearer credential obtained out of band (the
// e-sign provider issues it separately from login) and persists it.
// A blank token drops the credential only; the persisted user record
// is untouched.
func (s *Store) AdoptToken(token string) {
	token = strings.TrimSpace(token)
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	if s.state == nil {
		return
	}
	if token == "" {
		s.state.ClearToken()
		return
	}
	if err := s.state.SaveToken(token); err != nil {
		s.logger.Warn("token persist failed", "error", err)
	}
}

// Register creates an account. The backend acknowledgment is returned
// verbatim; registration does not authenticate.
func (s *Store) Register(ctx context.Context, profile models.Profile) (map[string]any, error) {
	body, err := json.Marshal(profile)
	if err != nil {
		return nil, contracts.WrapError(contracts.CategoryRegistration, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/users/register", bytes.NewReader(body))
	if err != nil {
		return nil, contracts.WrapError(contracts.CategoryRegistration, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, contracts.WrapError(contracts.CategoryRegistration, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, contracts.NewError(contracts.CategoryRegistration, backendMessage(raw, resp.Status))
	}
	ack := map[string]any{}
	if err := json.Unmarshal(raw, &ack); err != nil {
		ack = map[string]any{}
	}
	return ack, nil
}

// Restore adopts the session persisted by a previous run. Missing or
// corrupt durable state yields no session and never an error: startup
// must not fail because a file rotted.
func (s *Store) Restore() *models.Session {
	if s.state == nil {
		return nil
	}
	user, token := s.state.Load()
	if user == nil {
		if token != "" {
			s.mu.Lock()
			s.token = token
			s.mu.Unlock()
		}
		return nil
	}

	s.mu.Lock()
	s.user = user
	s.userID = user.ID
	s.token = token
	session := models.Session{User: cloneUser(s.user), UserID: s.userID, Token: s.token}
	s.mu.Unlock()

	s.logger.Info("session restored", "user_id", session.UserID)
	s.notify(session.UserID)
	return &session
}

// Logout clears the in-memory session and removes both durable entries
// unconditionally, even when either was already absent.
func (s *Store) Logout() {
	s.mu.Lock()
	s.user = nil
	s.userID = ""
	s.token = ""
	s.mu.Unlock()

	if s.state != nil {
		s.state.Clear()
	}
	s.logger.Info("logged out")
	s.notify("")
}

func (s *Store) notify(userID string) {
	s.mu.RLock()
	watchers := make([]func(string), 0, len(s.watchers))
	for _, fn := range s.watchers {
		if fn != nil {
			watchers = append(watchers, fn)
		}
	}
	s.mu.RUnlock()
	for _, fn := range watchers {
		fn(userID)
	}
}

func decodeLoginPayload(raw []byte) (*models.User, string, error) {
	var wrapped struct {
		Message string       `json:"message"`
		Token   string       `json:"token"`
		User    *models.User `json:"user"`
	}
	_ = json.Unmarshal(raw, &wrapped)

	user := wrapped.User
	if user == nil {
		var flat models.User
		if err := json.Unmarshal(raw, &flat); err != nil {
			return nil, "", contracts.NewError(contracts.CategoryAuth, "login response is not valid JSON")
		}
		user = &flat
	}
	if strings.TrimSpace(user.ID) == "" {
		return nil, "", contracts.NewError(contracts.CategoryAuth, "login response did not include a user id")
	}
	return user, strings.TrimSpace(wrapped.Token), nil
}

// backendMessage extracts a {message} body when present, falling back
// to the raw body, then the HTTP status. Failures inspecting the error
// body must never mask the original failure.
func backendMessage(raw []byte, status string) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && strings.TrimSpace(body.Message) != "" {
		return body.Message
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return status
}

func cloneUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}
