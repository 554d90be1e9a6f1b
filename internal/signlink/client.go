package signlink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"signdesk/go-client/internal/contracts"
	"signdesk/go-client/pkg/models"
)

// CredentialSource yields the bearer credential for outbound calls.
type CredentialSource interface {
	Token() string
}

// Client mints shareable signing links from the e-sign proxy.
type Client struct {
	baseURL string
	client  *http.Client
	session CredentialSource
	logger  *slog.Logger
}

type Options struct {
	BaseURL string
	Client  *http.Client
	Session CredentialSource
	Logger  *slog.Logger
}

func NewClient(opts Options) *Client {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  client,
		session: opts.Session,
		logger:  logger,
	}
}

type createRequest struct {
	Token       string `json:"token"`
	DocumentID  string `json:"documentId"`
	RedirectURI string `json:"redirectUri,omitempty"`
}

// linkResponse carries the three structured field names the proxy is
// known to answer with.
type linkResponse struct {
	Message     string `json:"message"`
	URL         string `json:"url"`
	Link        string `json:"link"`
	SigningLink string `json:"signing_link"`
}

// Create requests a shareable signing link for a provider document id.
// The redirect URI is omitted from the request when blank.
func (c *Client) Create(ctx context.Context, documentID, redirectURI string) (models.SigningLink, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return models.SigningLink{}, contracts.NewError(contracts.CategoryLink, "no document id")
	}
	token := c.session.Token()
	if token == "" {
		return models.SigningLink{}, contracts.NewError(contracts.CategoryLink, "not authenticated")
	}

	redirectURI = strings.TrimSpace(redirectURI)
	body, err := json.Marshal(createRequest{Token: token, DocumentID: documentID, RedirectURI: redirectURI})
	if err != nil {
		return models.SigningLink{}, contracts.WrapError(contracts.CategoryLink, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/signing-links", bytes.NewReader(body))
	if err != nil {
		return models.SigningLink{}, contracts.WrapError(contracts.CategoryLink, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return models.SigningLink{}, contracts.WrapError(contracts.CategoryLink, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	var parsed linkResponse
	structured := json.Unmarshal(raw, &parsed) == nil

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := ""
		if structured {
			message = strings.TrimSpace(parsed.Message)
		}
		if message == "" {
			message = strings.TrimSpace(string(raw))
		}
		if message == "" {
			message = fmt.Sprintf("Failed (%d)", resp.StatusCode)
		}
		return models.SigningLink{}, contracts.NewError(contracts.CategoryLink, message)
	}

	url := ""
	if structured {
		url = firstNonEmpty(parsed.URL, parsed.Link, parsed.SigningLink)
	}
	if url == "" {
		// The proxy sometimes answers with the bare link as plain
		// text. Keep that path but make it visible in the logs, a
		// malformed response would otherwise pass as a valid link.
		url = strings.TrimSpace(string(raw))
		if url != "" {
			c.logger.Warn("signing link taken from raw response body", "document_id", documentID)
		}
	}
	if url == "" {
		return models.SigningLink{}, contracts.NewError(contracts.CategoryLink, "signing link response was empty")
	}

	c.logger.Info("signing link created", "document_id", documentID)
	return models.SigningLink{DocumentID: documentID, RedirectURI: redirectURI, URL: url}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
