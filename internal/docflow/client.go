package docflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"signdesk/go-client/internal/contracts"
	"signdesk/go-client/pkg/models"
)

// CredentialSource yields the bearer credential for outbound calls.
// Satisfied by session.Store.
type CredentialSource interface {
	Token() string
}

// Client drives the upload-and-ingest workflow against the document
// backend and streams document downloads from it.
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

// UploadInput is the transient input of one upload call. It is never
// retained past the call.
type UploadInput struct {
	Filename string
	Data     []byte
	Workflow models.WorkflowKind
	OwnerID  string
}

// uploadResponse carries the provider field-name variants. They are
// normalized here, at the ingestion edge, and nowhere else.
type uploadResponse struct {
	DocumentID         string `json:"document_id"`
	DocumentIDAlt      string `json:"documentId"`
	EmbeddedSendingURL string `json:"embedded_sending_url"`
	EmbeddedSendingAlt string `json:"embeddedSendingUrl"`
	PreviewURL         string `json:"preview_url"`
	PreviewURLAlt      string `json:"previewUrl"`
}

// Upload issues one multipart request carrying the file, workflow kind
// and owner identifier. It fails before any network call when the file
// is absent or no credential is held.
func (c *Client) Upload(ctx context.Context, input UploadInput) (models.DocumentRecord, error) {
	if len(input.Data) == 0 {
		return models.DocumentRecord{}, contracts.NewError(contracts.CategoryValidation, "no file supplied")
	}
	token := c.session.Token()
	if token == "" {
		return models.DocumentRecord{}, contracts.NewError(contracts.CategoryAuth, "not authenticated")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", input.Filename)
	if err != nil {
		return models.DocumentRecord{}, contracts.WrapError(contracts.CategoryUpload, err)
	}
	if _, err := part.Write(input.Data); err != nil {
		return models.DocumentRecord{}, contracts.WrapError(contracts.CategoryUpload, err)
	}
	if err := writer.WriteField("workflow", string(input.Workflow)); err != nil {
		return models.DocumentRecord{}, contracts.WrapError(contracts.CategoryUpload, err)
	}
	if input.OwnerID != "" {
		if err := writer.WriteField("user_id", input.OwnerID); err != nil {
			return models.DocumentRecord{}, contracts.WrapError(contracts.CategoryUpload, err)
		}
	}
	if err := writer.Close(); err != nil {
		return models.DocumentRecord{}, contracts.WrapError(contracts.CategoryUpload, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/documents/embed-send", &body)
	if err != nil {
		return models.DocumentRecord{}, contracts.WrapError(contracts.CategoryUpload, err)
	}
	// The multipart writer owns Content-Type; anything else breaks
	// boundary framing.
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return models.DocumentRecord{}, contracts.WrapError(contracts.CategoryUpload, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := strings.TrimSpace(string(raw))
		if message == "" {
			message = resp.Status
		}
		return models.DocumentRecord{}, contracts.NewError(contracts.CategoryUpload, message)
	}

	var parsed uploadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return models.DocumentRecord{}, contracts.NewError(contracts.CategoryUpload, "upload response is not valid JSON")
	}

	record := models.DocumentRecord{
		OriginalName:       input.Filename,
		Workflow:           input.Workflow,
		SizeBytes:          int64(len(input.Data)),
		OwnerID:            input.OwnerID,
		ProviderDocumentID: firstNonEmpty(parsed.DocumentID, parsed.DocumentIDAlt),
		EmbeddedSendingURL: firstNonEmpty(parsed.EmbeddedSendingURL, parsed.EmbeddedSendingAlt),
		PreviewURL:         firstNonEmpty(parsed.PreviewURL, parsed.PreviewURLAlt),
	}
	c.logger.Info("document uploaded",
		"document_id", record.ProviderDocumentID,
		"workflow", record.Workflow,
		"size_bytes", record.SizeBytes)
	return record, nil
}

// Download fetches the binary document stream for a provider document
// id. The raw payload is returned; filename resolution belongs to the
// registry view.
func (c *Client) Download(ctx context.Context, providerDocumentID string) ([]byte, error) {
	if strings.TrimSpace(providerDocumentID) == "" {
		return nil, contracts.NewError(contracts.CategoryDownload, "no provider document id")
	}
	token := c.session.Token()
	if token == "" {
		return nil, contracts.NewError(contracts.CategoryDownload, "not authenticated")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/download/"+providerDocumentID, nil)
	if err != nil {
		return nil, contracts.WrapError(contracts.CategoryDownload, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, contracts.WrapError(contracts.CategoryDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, contracts.NewError(contracts.CategoryDownload,
			fmt.Sprintf("Download failed: %d %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, contracts.WrapError(contracts.CategoryDownload, err)
	}
	return data, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
