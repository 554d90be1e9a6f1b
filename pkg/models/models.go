package models

import (
	"strings"
	"time"
)

// WorkflowKind is the signing route requested at upload time.
type WorkflowKind string

const (
	WorkflowParallel   WorkflowKind = "parallel"
	WorkflowSequential WorkflowKind = "sequential"
)

// ParseWorkflowKind normalizes a workflow string; unknown values are
// rejected by the caller, not coerced.
func ParseWorkflowKind(raw string) (WorkflowKind, bool) {
	switch WorkflowKind(strings.ToLower(strings.TrimSpace(raw))) {
	case WorkflowParallel:
		return WorkflowParallel, true
	case WorkflowSequential:
		return WorkflowSequential, true
	default:
		return "", false
	}
}

// User is the account record returned by the auth backend on login.
// The backend may wrap it in {user: ...} or return it flat.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	JobTitle string `json:"jobTitle,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Session is the in-memory representation of the authenticated user:
// identity, role and the bearer credential used against the document
// and e-sign backends. UserID is derived from User and is empty iff
// no user is authenticated.
type Session struct {
	User   *User  `json:"user"`
	UserID string `json:"user_id"`
	Token  string `json:"token,omitempty"`
}

func (s Session) Authenticated() bool {
	return s.User != nil && s.UserID != ""
}

// Profile is the registration input sent to the auth backend.
type Profile struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	JobTitle string `json:"jobTitle"`
	Password string `json:"password"`
}

// DocumentRecord is the canonical client-side view of a tracked
// document. Provider field-name variants are normalized into this
// shape at the ingestion boundary and nowhere else.
type DocumentRecord struct {
	ID                 string       `json:"id,omitempty"`
	OriginalName       string       `json:"original_name"`
	Workflow           WorkflowKind `json:"workflow"`
	UploadedAt         time.Time    `json:"uploaded_at,omitzero"`
	SizeBytes          int64        `json:"size_bytes,omitempty"`
	ProviderDocumentID string       `json:"provider_document_id"`
	OwnerID            string       `json:"owner_id"`
	PreviewURL         string       `json:"preview_url,omitempty"`
	EmbeddedSendingURL string       `json:"embedded_sending_url,omitempty"`
}

// SigningLink is the transient result of one link-creation request.
// It is never persisted.
type SigningLink struct {
	DocumentID  string `json:"document_id"`
	RedirectURI string `json:"redirect_uri,omitempty"`
	URL         string `json:"url"`
}

// Download is a fetched document payload plus the filename the caller
// should save it under.
type Download struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}
