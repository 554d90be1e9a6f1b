package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"signdesk/go-client/internal/contracts"
	"signdesk/go-client/internal/platform/metrics"
	"signdesk/go-client/pkg/models"
)

// IdentitySource yields the active user id. Satisfied by session.Store.
type IdentitySource interface {
	UserID() string
}

// Downloader streams a document payload by provider document id.
// Satisfied by docflow.Client.
type Downloader interface {
	Download(ctx context.Context, providerDocumentID string) ([]byte, error)
}

// View is the per-session window onto the shared document collection:
// it fetches the backend list, keeps only records owned by the active
// identity, and applies the current search text on read. Refreshes are
// tagged with a monotonically advancing epoch so a slow response from
// a superseded refresh can never overwrite a newer one.
type View struct {
	baseURL    string
	client     *http.Client
	session    IdentitySource
	downloader Downloader
	logger     *slog.Logger

	mu      sync.Mutex
	epoch   uint64
	records []models.DocumentRecord
	search  string
}

type Options struct {
	BaseURL    string
	Client     *http.Client
	Session    IdentitySource
	Downloader Downloader
	Logger     *slog.Logger
}

func NewView(opts Options) *View {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &View{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		client:     client,
		session:    opts.Session,
		downloader: opts.Downloader,
		logger:     logger,
	}
}

// ListOwned fetches the shared list and keeps records owned by userID.
// An empty userID yields the empty sequence without a network call.
func (v *View) ListOwned(ctx context.Context, userID string) ([]models.DocumentRecord, error) {
	if userID == "" {
		return nil, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		v.baseURL+"/api/documents?userId="+url.QueryEscape(userID), nil)
	if err != nil {
		return nil, contracts.WrapError(contracts.CategoryList, err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, contracts.WrapError(contracts.CategoryList, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, contracts.NewError(contracts.CategoryList, fmt.Sprintf("List failed: %d", resp.StatusCode))
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, contracts.WrapError(contracts.CategoryList, err)
	}

	rows, err := decodeRows(raw)
	if err != nil {
		return nil, err
	}
	owned := make([]models.DocumentRecord, 0, len(rows))
	for _, row := range rows {
		record, ok := normalizeRow(row, userID)
		if !ok {
			continue
		}
		owned = append(owned, record)
	}
	return owned, nil
}

// Refresh re-fetches the owned list for the active identity and adopts
// the result unless a newer refresh started in the meantime. A stale
// result, success or failure, is discarded without touching state.
// The identity read and the epoch assignment happen under one lock
// acquisition: a refresh that saw an older identity always carries an
// older epoch than the refresh triggered by the identity change.
func (v *View) Refresh(ctx context.Context) error {
	v.mu.Lock()
	userID := v.session.UserID()
	v.epoch++
	epoch := v.epoch
	v.mu.Unlock()

	if userID == "" {
		v.mu.Lock()
		if epoch == v.epoch {
			v.records = nil
		}
		v.mu.Unlock()
		return nil
	}

	owned, err := v.ListOwned(ctx, userID)

	v.mu.Lock()
	defer v.mu.Unlock()
	if epoch != v.epoch {
		metrics.StaleRefreshesDiscarded.Inc()
		v.logger.Debug("stale list refresh discarded", "user_id", userID)
		return nil
	}
	metrics.Observe(metrics.ListRefreshes, err)
	if err != nil {
		return err
	}
	v.records = owned
	return nil
}

// SetSearch installs the search text applied by Records.
func (v *View) SetSearch(text string) {
	v.mu.Lock()
	v.search = strings.TrimSpace(text)
	v.mu.Unlock()
}

// Records returns the owned records matching the current search text.
// Ownership was already applied at fetch time; search is vacuous when
// the text is empty.
func (v *View) Records() []models.DocumentRecord {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.search == "" {
		return append([]models.DocumentRecord(nil), v.records...)
	}
	needle := strings.ToLower(v.search)
	matched := make([]models.DocumentRecord, 0, len(v.records))
	for _, record := range v.records {
		if matchesSearch(record, needle) {
			matched = append(matched, record)
		}
	}
	return matched
}

// Download fetches the record's document and resolves the filename it
// should be saved under.
func (v *View) Download(ctx context.Context, record models.DocumentRecord) (models.Download, error) {
	data, err := v.downloader.Download(ctx, record.ProviderDocumentID)
	if err != nil {
		return models.Download{}, err
	}
	return models.Download{Filename: downloadFilename(record), Data: data}, nil
}

func matchesSearch(record models.DocumentRecord, needle string) bool {
	for _, hay := range []string{record.OriginalName, string(record.Workflow), record.ProviderDocumentID} {
		if strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}

// downloadFilename keeps the original name when it already carries a
// recognized document extension, otherwise synthesizes
// "<name>-<provider id>.pdf".
func downloadFilename(record models.DocumentRecord) string {
	name := strings.TrimSpace(record.OriginalName)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf", ".doc", ".docx":
		return name
	}
	if name == "" {
		name = "document"
	}
	return name + "-" + record.ProviderDocumentID + ".pdf"
}

// decodeRows keeps numbers as json.Number so numeric owner ids can be
// stringified instead of mangled through float64.
func decodeRows(raw []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, contracts.NewError(contracts.CategoryList, "document list response is not valid JSON")
	}
	return rows, nil
}

// Ownership field names accepted from the backend, in priority order.
var ownerFields = []string{"userId", "ownerId", "uploaderUserId", "user_id"}

// normalizeRow maps one backend row into the canonical record shape
// and reports whether userID owns it. Ownership is compared as
// strings; a row with no recognized owner field is excluded. The
// fallthrough stops at the first field that is present and non-null,
// even when its value is empty: a blank owner resolves the chain and
// excludes the record instead of deferring to a legacy field.
func normalizeRow(row map[string]any, userID string) (models.DocumentRecord, bool) {
	owner := ""
	for _, field := range ownerFields {
		value, ok := row[field]
		if !ok || value == nil {
			continue
		}
		owner = stringify(value)
		break
	}
	if owner == "" || owner != userID {
		return models.DocumentRecord{}, false
	}

	record := models.DocumentRecord{
		ID:                 firstString(row, "id", "_id"),
		OriginalName:       firstString(row, "originalName", "original_name", "name"),
		ProviderDocumentID: firstString(row, "signNowDocumentId"),
		OwnerID:            owner,
		PreviewURL:         firstString(row, "preview_url", "previewUrl"),
		EmbeddedSendingURL: firstString(row, "embedded_sending_url", "embeddedSendingUrl"),
	}
	if kind, ok := models.ParseWorkflowKind(firstString(row, "workflow", "workflowKind")); ok {
		record.Workflow = kind
	}
	if size, ok := row["sizeBytes"]; ok {
		if number, ok := size.(json.Number); ok {
			if parsed, err := number.Int64(); err == nil {
				record.SizeBytes = parsed
			}
		}
	}
	if uploaded := firstString(row, "uploadedAt", "uploaded_at"); uploaded != "" {
		if ts, err := parseTimestamp(uploaded); err == nil {
			record.UploadedAt = ts
		}
	}
	return record, true
}

func firstString(row map[string]any, fields ...string) string {
	for _, field := range fields {
		if value, ok := row[field]; ok {
			if s := stringify(value); s != "" {
				return s
			}
		}
	}
	return ""
}

func parseTimestamp(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02 15:04:05", raw)
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
