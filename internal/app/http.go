package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"blockforge/api/internal/editor"
	"blockforge/api/internal/export"
	"blockforge/api/internal/snapshot"
	"blockforge/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"storage": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["storage"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	parts := splitPath(r.URL.Path)

	// Documents
	if r.Method == http.MethodGet && r.URL.Path == "/api/documents" {
		writeJSON(w, http.StatusOK, map[string]any{
			"documents": s.service.DocumentList(r.URL.Query().Get("q")),
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/documents" {
		var body struct {
			Title string `json:"title"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		doc := s.service.CreateDocument(r.Context(), body.Title)
		writeJSON(w, http.StatusCreated, doc)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/documents/close" {
		s.service.CloseDocument(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "documents" {
		documentID := parts[2]
		switch r.Method {
		case http.MethodGet:
			doc, err := s.service.GetDocument(documentID)
			if err != nil {
				s.writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, doc)
			return
		case http.MethodPut:
			var body struct {
				Title    *string `json:"title"`
				ClientID *string `json:"clientId"`
				Unassign bool    `json:"unassignClient"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if body.Title != nil {
				if err := s.service.RenameDocument(r.Context(), documentID, *body.Title); err != nil {
					s.writeMappedError(w, err)
					return
				}
			}
			if body.ClientID != nil || body.Unassign {
				if err := s.service.AssignClient(r.Context(), documentID, body.ClientID); err != nil {
					s.writeMappedError(w, err)
					return
				}
			}
			doc, err := s.service.GetDocument(documentID)
			if err != nil {
				s.writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, doc)
			return
		case http.MethodDelete:
			err := s.service.DeleteDocument(r.Context(), documentID, confirmParam(r))
			if err != nil {
				s.writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	if r.Method == http.MethodPost && len(parts) == 4 && parts[0] == "api" && parts[1] == "documents" && parts[3] == "open" {
		doc, err := s.service.OpenDocument(r.Context(), parts[2])
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
		return
	}

	if r.Method == http.MethodPost && len(parts) == 4 && parts[0] == "api" && parts[1] == "documents" && parts[3] == "duplicate" {
		doc, err := s.service.DuplicateDocument(r.Context(), parts[2])
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, doc)
		return
	}

	if r.Method == http.MethodGet && len(parts) == 4 && parts[0] == "api" && parts[1] == "documents" && parts[3] == "export" {
		format := export.Format(r.URL.Query().Get("format"))
		if format == "" {
			format = export.FormatDOCX
		}
		result, err := s.service.ExportDocument(parts[2], format)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)
		return
	}

	if r.Method == http.MethodGet && len(parts) == 4 && parts[0] == "api" && parts[1] == "documents" && parts[3] == "history" {
		limit := intParam(r, "limit", 50)
		revisions, err := s.service.History(parts[2], limit)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"revisions": revisions})
		return
	}

	if r.Method == http.MethodGet && len(parts) == 5 && parts[0] == "api" && parts[1] == "documents" && parts[3] == "history" {
		content, err := s.service.HistoryContent(parts[2], parts[4])
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, content)
		return
	}

	// Blocks of the open document
	if r.Method == http.MethodPost && r.URL.Path == "/api/blocks" {
		var body struct {
			GroupID    string `json:"groupId"`
			TemplateID string `json:"templateId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		block, err := s.service.AppendBlock(r.Context(), body.GroupID, body.TemplateID)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, block)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/blocks/move" {
		var body struct {
			From int `json:"from"`
			To   int `json:"to"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.MoveBlock(r.Context(), body.From, body.To); err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodPost && len(parts) == 4 && parts[0] == "api" && parts[1] == "blocks" &&
		(parts[3] == "move-up" || parts[3] == "move-down") {
		index, err := strconv.Atoi(parts[2])
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_INDEX", "Block index must be a number", nil)
			return
		}
		if parts[3] == "move-up" {
			err = s.service.MoveBlockUp(r.Context(), index)
		} else {
			err = s.service.MoveBlockDown(r.Context(), index)
		}
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "blocks" {
		index, err := strconv.Atoi(parts[2])
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_INDEX", "Block index must be a number", nil)
			return
		}
		switch r.Method {
		case http.MethodPut:
			var body struct {
				Name    *string `json:"name"`
				Content *string `json:"content"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if body.Name != nil {
				if err := s.service.RenameBlock(r.Context(), index, *body.Name); err != nil {
					s.writeMappedError(w, err)
					return
				}
			}
			if body.Content != nil {
				if err := s.service.SetBlockContent(r.Context(), index, *body.Content); err != nil {
					s.writeMappedError(w, err)
					return
				}
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		case http.MethodDelete:
			if err := s.service.DeleteBlock(r.Context(), index, confirmParam(r)); err != nil {
				s.writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	// Edit session
	if r.Method == http.MethodGet && r.URL.Path == "/api/edit" {
		writeJSON(w, http.StatusOK, map[string]any{"editing": s.service.EditingBlock()})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/edit/begin" {
		var body struct {
			Index int `json:"index"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.BeginEdit(r.Context(), body.Index); err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/edit/input" {
		var body struct {
			Content string `json:"content"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.EditInput(r.Context(), body.Content); err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/edit/exit" {
		s.service.ExitEdit(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// Clients
	if r.Method == http.MethodGet && r.URL.Path == "/api/clients" {
		writeJSON(w, http.StatusOK, map[string]any{"clients": s.service.ClientList()})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/clients/options" {
		writeJSON(w, http.StatusOK, map[string]any{"options": s.service.ClientOptions()})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/clients" {
		var body store.Client
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		client, err := s.service.CreateClient(r.Context(), body)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, client)
		return
	}

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "clients" {
		clientID := parts[2]
		switch r.Method {
		case http.MethodGet:
			client, err := s.service.GetClient(clientID)
			if err != nil {
				s.writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, client)
			return
		case http.MethodPut:
			var body store.Client
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			client, err := s.service.UpdateClient(r.Context(), clientID, body)
			if err != nil {
				s.writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, client)
			return
		case http.MethodDelete:
			if err := s.service.DeleteClient(r.Context(), clientID, confirmParam(r)); err != nil {
				s.writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	if r.Method == http.MethodPut && len(parts) == 4 && parts[0] == "api" && parts[1] == "clients" && parts[3] == "risk-assessment" {
		var body store.RiskAssessment
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		client, err := s.service.UpdateRiskAssessment(r.Context(), parts[2], &body)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, client)
		return
	}

	// Document templates
	if r.Method == http.MethodGet && r.URL.Path == "/api/templates" {
		writeJSON(w, http.StatusOK, map[string]any{"templates": s.service.TemplateList()})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/templates" {
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		tpl, err := s.service.SaveTemplateFromDocument(r.Context(), body.Name)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, tpl)
		return
	}

	if r.Method == http.MethodPost && len(parts) == 4 && parts[0] == "api" && parts[1] == "templates" && parts[3] == "apply" {
		var body struct {
			Confirm bool `json:"confirm"`
		}
		_ = decodeBody(r, &body)
		if err := s.service.ApplyTemplate(r.Context(), parts[2], body.Confirm); err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodDelete && len(parts) == 3 && parts[0] == "api" && parts[1] == "templates" {
		if err := s.service.DeleteTemplate(r.Context(), parts[2], confirmParam(r)); err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// Block groups
	if r.Method == http.MethodGet && r.URL.Path == "/api/groups" {
		writeJSON(w, http.StatusOK, map[string]any{"groups": s.service.GroupPalette()})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/groups" {
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		id, err := s.service.CreateGroup(r.Context(), body.Name)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": id, "name": body.Name})
		return
	}

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "groups" {
		groupID := parts[2]
		switch r.Method {
		case http.MethodPut:
			var body struct {
				Name string `json:"name"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.RenameGroup(r.Context(), groupID, body.Name); err != nil {
				s.writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		case http.MethodDelete:
			if err := s.service.DeleteGroup(r.Context(), groupID, confirmParam(r)); err != nil {
				s.writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	if r.Method == http.MethodPost && len(parts) == 4 && parts[0] == "api" && parts[1] == "groups" && parts[3] == "blocks" {
		var body struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Content string `json:"content"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		id, err := s.service.PutBlockTemplate(r.Context(), parts[2], body.ID, body.Name, body.Content)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": id})
		return
	}

	if r.Method == http.MethodDelete && len(parts) == 5 && parts[0] == "api" && parts[1] == "groups" && parts[3] == "blocks" {
		if err := s.service.DeleteBlockTemplate(r.Context(), parts[2], parts[4], confirmParam(r)); err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// Search
	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		response := s.service.Search(
			r.URL.Query().Get("q"),
			intParam(r, "limit", 0),
			intParam(r, "offset", 0),
		)
		writeJSON(w, http.StatusOK, response)
		return
	}

	// Backup and restore
	if r.Method == http.MethodGet && r.URL.Path == "/api/backup" {
		bundle, filename := s.service.ExportBackup()
		raw, err := json.MarshalIndent(bundle, "", "  ")
		if err != nil {
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Backup serialization failed", nil)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(raw)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/backup/restore" {
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 32<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "Could not read backup payload", nil)
			return
		}
		if err := s.service.ImportBackup(r.Context(), raw, confirmParam(r)); err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/backup/archive" {
		name, err := s.service.ArchiveBackup(r.Context())
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"name": name})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/backup/archive" {
		entries, err := s.service.ListArchivedBackups(r.Context())
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"backups": entries})
		return
	}

	if r.Method == http.MethodPost && len(parts) == 5 && parts[0] == "api" && parts[1] == "backup" && parts[2] == "archive" && parts[4] == "restore" {
		var body struct {
			Confirm bool `json:"confirm"`
		}
		_ = decodeBody(r, &body)
		if err := s.service.RestoreFromArchive(r.Context(), parts[3], body.Confirm); err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/reset" {
		var body struct {
			Confirm      bool `json:"confirm"`
			ConfirmAgain bool `json:"confirmAgain"`
		}
		_ = decodeBody(r, &body)
		if err := s.service.ResetAll(r.Context(), body.Confirm, body.ConfirmAgain); err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// Notifications
	if r.Method == http.MethodGet && r.URL.Path == "/api/notifications" {
		writeJSON(w, http.StatusOK, map[string]any{
			"notifications": s.service.Notices(intParam(r, "limit", 0)),
		})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func confirmParam(r *http.Request) bool {
	return r.URL.Query().Get("confirm") == "true"
}

func intParam(r *http.Request, name string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, editor.ErrBlockNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, store.ErrDefaultGroup) {
		return http.StatusForbidden, "DEFAULT_GROUP_PROTECTED", "The default block group cannot be deleted", nil
	}
	if errors.Is(err, editor.ErrNoOpenDocument) {
		return http.StatusConflict, "NO_OPEN_DOCUMENT", "Open a document first", nil
	}
	if errors.Is(err, snapshot.ErrMalformed) {
		return http.StatusUnprocessableEntity, "INVALID_BUNDLE", err.Error(), nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
