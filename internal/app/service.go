package app

import (
	"context"
	"log/slog"
	"time"

	"signdesk/go-client/internal/docflow"
	"signdesk/go-client/internal/platform/metrics"
	"signdesk/go-client/internal/registry"
	"signdesk/go-client/internal/session"
	"signdesk/go-client/internal/signlink"
	"signdesk/go-client/pkg/models"
)

const identityRefreshTimeout = 30 * time.Second

// Service is the orchestrator behind the RPC surface. It owns the
// wiring between the session store and the document components: the
// session is restored once at startup, and every identity change
// triggers a registry refresh for the new user.
type Service struct {
	session  *session.Store
	docs     *docflow.Client
	links    *signlink.Client
	registry *registry.View
	logger   *slog.Logger

	unsubscribe func()
}

type Dependencies struct {
	Session  *session.Store
	Docs     *docflow.Client
	Links    *signlink.Client
	Registry *registry.View
	Logger   *slog.Logger
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		session:  deps.Session,
		docs:     deps.Docs,
		links:    deps.Links,
		registry: deps.Registry,
		logger:   logger,
	}
}

// Start restores any persisted session and begins watching identity
// changes. The restored identity, if any, gets an initial list refresh.
func (s *Service) Start(ctx context.Context) {
	s.unsubscribe = s.session.Subscribe(func(userID string) {
		go s.refreshForIdentity(userID)
	})
	s.session.Restore()
}

func (s *Service) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

func (s *Service) refreshForIdentity(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), identityRefreshTimeout)
	defer cancel()
	if err := s.registry.Refresh(ctx); err != nil {
		s.logger.Warn("list refresh after identity change failed", "user_id", userID, "error", err)
	}
}

func (s *Service) Login(ctx context.Context, creds session.Credentials) (models.Session, error) {
	result, err := s.session.Login(ctx, creds)
	metrics.Observe(metrics.Logins, err)
	return result, err
}

func (s *Service) Register(ctx context.Context, profile models.Profile) (map[string]any, error) {
	ack, err := s.session.Register(ctx, profile)
	metrics.Observe(metrics.Registrations, err)
	return ack, err
}

func (s *Service) Logout() {
	s.session.Logout()
}

// AdoptToken installs a provider credential issued outside the login
// flow; blank drops the held credential.
func (s *Service) AdoptToken(token string) {
	s.session.AdoptToken(token)
}

func (s *Service) Session() models.Session {
	return s.session.Snapshot()
}

func (s *Service) IsAdmin() bool {
	return s.session.IsAdmin()
}

// Upload runs the upload-and-ingest workflow for the active identity
// and refreshes the registry so the new record shows up on the next
// list read.
func (s *Service) Upload(ctx context.Context, input docflow.UploadInput) (models.DocumentRecord, error) {
	if input.OwnerID == "" {
		input.OwnerID = s.session.UserID()
	}
	record, err := s.docs.Upload(ctx, input)
	metrics.Observe(metrics.Uploads, err)
	if err != nil {
		return models.DocumentRecord{}, err
	}
	if err := s.registry.Refresh(ctx); err != nil {
		s.logger.Warn("list refresh after upload failed", "error", err)
	}
	return record, nil
}

// Documents refreshes the owned list and returns the records matching
// the search text.
func (s *Service) Documents(ctx context.Context, search string) ([]models.DocumentRecord, error) {
	s.registry.SetSearch(search)
	if err := s.registry.Refresh(ctx); err != nil {
		return nil, err
	}
	return s.registry.Records(), nil
}

// Download fetches a document by provider id. The known record, when
// present in the registry, supplies the original name for filename
// resolution.
func (s *Service) Download(ctx context.Context, providerDocumentID string) (models.Download, error) {
	record := models.DocumentRecord{ProviderDocumentID: providerDocumentID}
	for _, known := range s.registry.Records() {
		if known.ProviderDocumentID == providerDocumentID {
			record = known
			break
		}
	}
	download, err := s.registry.Download(ctx, record)
	metrics.Observe(metrics.Downloads, err)
	return download, err
}

func (s *Service) CreateSigningLink(ctx context.Context, documentID, redirectURI string) (models.SigningLink, error) {
	link, err := s.links.Create(ctx, documentID, redirectURI)
	metrics.Observe(metrics.SigningLinks, err)
	return link, err
}

// CopySigningLink and OpenSigningLink are best-effort conveniences;
// the returned notice is empty on success and never an error.
func (s *Service) CopySigningLink(link string) string {
	return signlink.CopyToClipboard(link)
}

func (s *Service) OpenSigningLink(link string) string {
	return signlink.OpenInBrowser(link)
}
