package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"signdesk/go-client/internal/contracts"
	"signdesk/go-client/internal/docflow"
	"signdesk/go-client/internal/session"
	"signdesk/go-client/pkg/models"
)

const maxUploadBytes = 25 << 20

func (s *Server) dispatch(ctx context.Context, method string, params json.RawMessage) (any, *rpcError) {
	switch method {
	case "health_check":
		return map[string]string{"status": "ok"}, nil
	case "auth_login":
		return s.handleLogin(ctx, params)
	case "auth_register":
		return s.handleRegister(ctx, params)
	case "auth_logout":
		s.service.Logout()
		return map[string]string{"status": "ok"}, nil
	case "auth_adopt_token":
		return s.handleAdoptToken(params)
	case "auth_session":
		return s.handleSession()
	case "document_upload":
		return s.handleUpload(ctx, params)
	case "document_list":
		return s.handleList(ctx, params)
	case "document_download":
		return s.handleDownload(ctx, params)
	case "signing_link_create":
		return s.handleLinkCreate(ctx, params)
	case "signing_link_copy":
		return s.handleLinkAffordance(params, s.service.CopySigningLink)
	case "signing_link_open":
		return s.handleLinkAffordance(params, s.service.OpenSigningLink)
	default:
		return nil, &rpcError{Code: -32601, Message: "method not found"}
	}
}

func (s *Server) handleLogin(ctx context.Context, params json.RawMessage) (any, *rpcError) {
	var input session.Credentials
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	result, err := s.service.Login(ctx, input)
	if err != nil {
		return nil, toRPCError(err)
	}
	return result, nil
}

func (s *Server) handleRegister(ctx context.Context, params json.RawMessage) (any, *rpcError) {
	var input models.Profile
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	ack, err := s.service.Register(ctx, input)
	if err != nil {
		return nil, toRPCError(err)
	}
	return ack, nil
}

func (s *Server) handleAdoptToken(params json.RawMessage) (any, *rpcError) {
	var input struct {
		Token string `json:"token"`
	}
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	s.service.AdoptToken(input.Token)
	return map[string]string{"status": "ok"}, nil
}

func (s *Server) handleSession() (any, *rpcError) {
	snapshot := s.service.Session()
	return map[string]any{
		"session":       snapshot,
		"authenticated": snapshot.Authenticated(),
		"isAdmin":       s.service.IsAdmin(),
	}, nil
}

type uploadParams struct {
	Filename string `json:"filename"`
	Data     string `json:"data"`
	Workflow string `json:"workflow"`
	UserID   string `json:"userId"`
}

func (s *Server) handleUpload(ctx context.Context, params json.RawMessage) (any, *rpcError) {
	var input uploadParams
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	kind, ok := models.ParseWorkflowKind(input.Workflow)
	if !ok {
		return nil, &rpcError{Code: -32602, Message: "workflow must be parallel or sequential"}
	}
	data, err := base64.StdEncoding.DecodeString(input.Data)
	if err != nil {
		return nil, &rpcError{Code: -32602, Message: "data must be base64-encoded"}
	}
	if len(data) > maxUploadBytes {
		return nil, &rpcError{Code: -32602, Message: "file exceeds the upload size limit"}
	}
	record, uploadErr := s.service.Upload(ctx, docflow.UploadInput{
		Filename: input.Filename,
		Data:     data,
		Workflow: kind,
		OwnerID:  input.UserID,
	})
	if uploadErr != nil {
		return nil, toRPCError(uploadErr)
	}
	return record, nil
}

func (s *Server) handleList(ctx context.Context, params json.RawMessage) (any, *rpcError) {
	var input struct {
		Search string `json:"search"`
	}
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	records, err := s.service.Documents(ctx, input.Search)
	if err != nil {
		return nil, toRPCError(err)
	}
	if records == nil {
		records = []models.DocumentRecord{}
	}
	return map[string]any{"documents": records}, nil
}

func (s *Server) handleDownload(ctx context.Context, params json.RawMessage) (any, *rpcError) {
	var input struct {
		DocumentID string `json:"documentId"`
	}
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	download, err := s.service.Download(ctx, input.DocumentID)
	if err != nil {
		return nil, toRPCError(err)
	}
	return map[string]any{
		"filename": download.Filename,
		"data":     base64.StdEncoding.EncodeToString(download.Data),
	}, nil
}

func (s *Server) handleLinkCreate(ctx context.Context, params json.RawMessage) (any, *rpcError) {
	var input struct {
		DocumentID  string `json:"documentId"`
		RedirectURI string `json:"redirectUri"`
	}
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	link, err := s.service.CreateSigningLink(ctx, input.DocumentID, input.RedirectURI)
	if err != nil {
		return nil, toRPCError(err)
	}
	return link, nil
}

func (s *Server) handleLinkAffordance(params json.RawMessage, fn func(string) string) (any, *rpcError) {
	var input struct {
		URL string `json:"url"`
	}
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	notice := fn(input.URL)
	return map[string]any{"ok": notice == "", "notice": notice}, nil
}

func decodeParams(params json.RawMessage, into any) *rpcError {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, into); err != nil {
		return &rpcError{Code: -32602, Message: "invalid params"}
	}
	return nil
}

// toRPCError maps the error taxonomy onto stable JSON-RPC codes so
// the UI can branch without string matching.
func toRPCError(err error) *rpcError {
	code := -32000
	switch contracts.ErrorCategory(err) {
	case contracts.CategoryValidation:
		code = -32602
	case contracts.CategoryAuth:
		code = -32001
	case contracts.CategoryRegistration:
		code = -32002
	case contracts.CategoryUpload:
		code = -32010
	case contracts.CategoryList:
		code = -32011
	case contracts.CategoryDownload:
		code = -32012
	case contracts.CategoryLink:
		code = -32013
	}
	return &rpcError{Code: code, Message: err.Error()}
}
