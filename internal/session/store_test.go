package session

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"signdesk/go-client/internal/contracts"
	"signdesk/go-client/pkg/models"
)

func newTestStore(t *testing.T, handler http.HandlerFunc) (*Store, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store := NewStore(Options{BaseURL: srv.URL, Client: srv.Client()})
	return store, srv
}

func TestLoginNormalizesEmailBeforeTransmission(t *testing.T) {
	var sent Credentials
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/login" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &sent); err != nil {
			t.Fatalf("bad login body: %v", err)
		}
		_, _ = w.Write([]byte(`{"user":{"id":"u-1","role":"user"}}`))
	})

	_, err := store.Login(context.Background(), Credentials{Email: "  A@B.com ", Password: "x"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if sent.Email != "a@b.com" {
		t.Fatalf("email not normalized, sent %q", sent.Email)
	}
	if sent.Password != "x" {
		t.Fatalf("password must travel untouched, sent %q", sent.Password)
	}
}

func TestLoginAcceptsWrappedAndFlatPayloads(t *testing.T) {
	payloads := []string{
		`{"message":"ok","user":{"id":"u-9","role":"admin"}}`,
		`{"id":"u-9","email":"a@b.com","role":"admin"}`,
	}
	for _, payload := range payloads {
		store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(payload))
		})
		session, err := store.Login(context.Background(), Credentials{Email: "a@b.com", Password: "x"})
		if err != nil {
			t.Fatalf("login failed for %s: %v", payload, err)
		}
		if session.UserID != "u-9" {
			t.Fatalf("expected user id u-9, got %q", session.UserID)
		}
		if session.User == nil || session.User.ID != "u-9" {
			t.Fatal("user record must accompany the derived id")
		}
		if !store.IsAdmin() {
			t.Fatal("admin role must be recognized")
		}
	}
}

func TestLoginSurfacesBackendMessage(t *testing.T) {
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"bad credentials"}`))
	})
	_, err := store.Login(context.Background(), Credentials{Email: "a@b.com", Password: "nope"})
	if err == nil {
		t.Fatal("expected login error")
	}
	if !contracts.IsCategory(err, contracts.CategoryAuth) {
		t.Fatalf("expected auth category, got %s", contracts.ErrorCategory(err))
	}
	if err.Error() != "bad credentials" {
		t.Fatalf("expected backend message, got %q", err.Error())
	}
	if store.UserID() != "" {
		t.Fatal("failed login must leave the session unchanged")
	}
}

func TestLoginRejectsPayloadWithoutUserID(t *testing.T) {
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	})
	_, err := store.Login(context.Background(), Credentials{Email: "a@b.com", Password: "x"})
	if err == nil {
		t.Fatal("expected error for payload without user id")
	}
	if store.UserID() != "" || store.Snapshot().User != nil {
		t.Fatal("no half-session may be adopted")
	}
}

func TestIsAdminFalseWhenUnauthenticated(t *testing.T) {
	store := NewStore(Options{BaseURL: "http://localhost:0"})
	if store.IsAdmin() {
		t.Fatal("unauthenticated session must not be admin")
	}
}

func TestSubscribeObservesIdentityChanges(t *testing.T) {
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"user":{"id":"u-3"}}`))
	})
	var seen []string
	cancel := store.Subscribe(func(userID string) {
		seen = append(seen, userID)
	})
	defer cancel()

	if _, err := store.Login(context.Background(), Credentials{Email: "a@b.com", Password: "x"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	store.Logout()

	if len(seen) != 2 || seen[0] != "u-3" || seen[1] != "" {
		t.Fatalf("expected [u-3 \"\"], got %v", seen)
	}
}

func TestRegisterSurfacesBackendFailure(t *testing.T) {
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users/register" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"email taken"}`))
	})
	_, err := store.Register(context.Background(), profileFixture())
	if err == nil {
		t.Fatal("expected registration error")
	}
	if !contracts.IsCategory(err, contracts.CategoryRegistration) {
		t.Fatalf("expected registration category, got %s", contracts.ErrorCategory(err))
	}
	if err.Error() != "email taken" {
		t.Fatalf("expected backend message, got %q", err.Error())
	}
}

func profileFixture() models.Profile {
	return models.Profile{
		Name:     "Ada Lovelace",
		Email:    "ada@example.com",
		Password: "s3cret",
		JobTitle: "Engineer",
	}
}

func TestRestoreAfterLoginRoundTrip(t *testing.T) {
	dir := t.TempDir()
	state := &StateStore{}
	state.Configure(dir, "test-secret")

	store, srv := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"user":{"id":"u-7","role":"admin"},"token":"tok-7"}`))
	})
	store.state = state
	if _, err := store.Login(context.Background(), Credentials{Email: "a@b.com", Password: "x"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	srv.Close()

	reborn := NewStore(Options{BaseURL: "http://localhost:0", State: state})
	restored := reborn.Restore()
	if restored == nil {
		t.Fatal("expected restored session")
	}
	if restored.UserID != "u-7" || restored.Token != "tok-7" {
		t.Fatalf("restored session mismatch: %+v", restored)
	}
	if !reborn.IsAdmin() {
		t.Fatal("restored role must be active")
	}
}

func TestRestoreToleratesCorruptState(t *testing.T) {
	dir := t.TempDir()
	state := &StateStore{}
	state.Configure(dir, "test-secret")
	if err := os.WriteFile(filepath.Join(dir, "auth_user.enc"), []byte("garbage"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	store := NewStore(Options{BaseURL: "http://localhost:0", State: state})
	if restored := store.Restore(); restored != nil {
		t.Fatalf("corrupt state must restore nothing, got %+v", restored)
	}
	if store.UserID() != "" {
		t.Fatal("corrupt state must leave the store unauthenticated")
	}
}

func TestAdoptTokenPersistsWithoutTouchingUser(t *testing.T) {
	dir := t.TempDir()
	state := &StateStore{}
	state.Configure(dir, "test-secret")

	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"user":{"id":"u-4"}}`))
	})
	store.state = state
	if _, err := store.Login(context.Background(), Credentials{Email: "a@b.com", Password: "x"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	store.AdoptToken(" tok-out-of-band ")
	if store.Token() != "tok-out-of-band" {
		t.Fatalf("token not adopted, got %q", store.Token())
	}
	if user, token := state.Load(); user == nil || token != "tok-out-of-band" {
		t.Fatalf("adopted token not persisted alongside user: user=%v token=%q", user, token)
	}

	// Dropping the credential must keep the persisted user record.
	store.AdoptToken("")
	if store.Token() != "" {
		t.Fatalf("token not cleared, got %q", store.Token())
	}
	if _, err := os.Stat(filepath.Join(dir, "auth_token.enc")); !os.IsNotExist(err) {
		t.Fatalf("expected token entry removed, err=%v", err)
	}
	if user, _ := state.Load(); user == nil || user.ID != "u-4" {
		t.Fatalf("user record must survive a credential drop, got %v", user)
	}
}

func TestLogoutRemovesDurableEntries(t *testing.T) {
	dir := t.TempDir()
	state := &StateStore{}
	state.Configure(dir, "test-secret")

	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"user":{"id":"u-2"},"token":"tok-2"}`))
	})
	store.state = state
	if _, err := store.Login(context.Background(), Credentials{Email: "a@b.com", Password: "x"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	store.Logout()
	for _, name := range []string{"auth_user.enc", "auth_token.enc"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Fatalf("expected %s to be removed, err=%v", name, err)
		}
	}
	if store.UserID() != "" || store.Token() != "" {
		t.Fatal("logout must clear in-memory session")
	}

	// Logging out again with nothing persisted must not fail.
	store.Logout()
}
