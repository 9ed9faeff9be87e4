package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"blockforge/api/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *Service) {
	t.Helper()
	svc := newTestService(t)
	ts := httptest.NewServer(NewHTTPServer(svc, "*").Handler())
	t.Cleanup(ts.Close)
	return ts, svc
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	payload := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp, payload
}

func TestHealthAndReady(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, payload := doJSON(t, http.MethodGet, ts.URL+"/api/health", nil)
	if resp.StatusCode != http.StatusOK || payload["ok"] != true {
		t.Fatalf("health: status=%d payload=%v", resp.StatusCode, payload)
	}

	resp, payload = doJSON(t, http.MethodGet, ts.URL+"/api/ready", nil)
	if resp.StatusCode != http.StatusOK || payload["status"] != "ready" {
		t.Fatalf("ready: status=%d payload=%v", resp.StatusCode, payload)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header")
	}
}

func TestDocumentCRUDOverHTTP(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, created := doJSON(t, http.MethodPost, ts.URL+"/api/documents", map[string]any{"title": "HACCP Plan"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status=%d", resp.StatusCode)
	}
	docID, _ := created["id"].(string)
	if docID == "" {
		t.Fatalf("create: missing id in %v", created)
	}

	resp, listing := doJSON(t, http.MethodGet, ts.URL+"/api/documents", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status=%d", resp.StatusCode)
	}
	docs, _ := listing["documents"].([]any)
	if len(docs) != 1 {
		t.Fatalf("list: expected one document, got %v", listing)
	}
	first, _ := docs[0].(map[string]any)
	if first["active"] != true {
		t.Fatal("created document should be active")
	}

	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/api/documents/"+docID, map[string]any{"title": "Renamed"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rename: status=%d", resp.StatusCode)
	}

	// Destructive without confirmation.
	resp, payload := doJSON(t, http.MethodDelete, ts.URL+"/api/documents/"+docID, nil)
	if resp.StatusCode != http.StatusConflict || payload["code"] != "CONFIRM_REQUIRED" {
		t.Fatalf("unconfirmed delete: status=%d payload=%v", resp.StatusCode, payload)
	}

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/documents/"+docID+"?confirm=true", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirmed delete: status=%d", resp.StatusCode)
	}

	resp, payload = doJSON(t, http.MethodGet, ts.URL+"/api/documents/"+docID, nil)
	if resp.StatusCode != http.StatusNotFound || payload["code"] != "NOT_FOUND" {
		t.Fatalf("get deleted: status=%d payload=%v", resp.StatusCode, payload)
	}
}

func TestAppendBlockRequiresOpenDocument(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, payload := doJSON(t, http.MethodPost, ts.URL+"/api/blocks", map[string]any{
		"groupId":    store.DefaultGroupID,
		"templateId": "paragraph",
	})
	if resp.StatusCode != http.StatusConflict || payload["code"] != "NO_OPEN_DOCUMENT" {
		t.Fatalf("status=%d payload=%v", resp.StatusCode, payload)
	}
}

func TestEditSessionSanitizesContent(t *testing.T) {
	ts, svc := newTestServer(t)

	resp, created := doJSON(t, http.MethodPost, ts.URL+"/api/documents", map[string]any{"title": "Plan"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create document: status=%d", resp.StatusCode)
	}
	docID := created["id"].(string)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/blocks", map[string]any{
		"groupId":    store.DefaultGroupID,
		"templateId": "paragraph",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("append block: status=%d", resp.StatusCode)
	}

	for _, step := range []struct {
		path string
		body any
	}{
		{"/api/edit/begin", map[string]any{"index": 0}},
		{"/api/edit/input", map[string]any{"content": `<p onclick="evil()">safe</p><script>evil()</script>`}},
		{"/api/edit/exit", nil},
	} {
		resp, payload := doJSON(t, http.MethodPost, ts.URL+step.path, step.body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status=%d payload=%v", step.path, resp.StatusCode, payload)
		}
	}

	doc, err := svc.GetDocument(docID)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Blocks[0].Content != "<p>safe</p>" {
		t.Fatalf("expected sanitized content, got %q", doc.Blocks[0].Content)
	}

	_, status := doJSON(t, http.MethodGet, ts.URL+"/api/edit", nil)
	if status["editing"] != "" {
		t.Fatalf("expected no edit session after exit, got %v", status["editing"])
	}
}

func TestResetRequiresDoubleConfirmation(t *testing.T) {
	ts, _ := newTestServer(t)

	doJSON(t, http.MethodPost, ts.URL+"/api/documents", map[string]any{"title": "Plan"})

	resp, payload := doJSON(t, http.MethodPost, ts.URL+"/api/reset", map[string]any{"confirm": true})
	if resp.StatusCode != http.StatusConflict || payload["code"] != "CONFIRM_AGAIN_REQUIRED" {
		t.Fatalf("single confirmation: status=%d payload=%v", resp.StatusCode, payload)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/reset", map[string]any{"confirm": true, "confirmAgain": true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("double confirmation: status=%d", resp.StatusCode)
	}

	_, listing := doJSON(t, http.MethodGet, ts.URL+"/api/documents", nil)
	if docs, _ := listing["documents"].([]any); len(docs) != 0 {
		t.Fatalf("expected empty document list after reset, got %v", listing)
	}

	// Factory palette is back.
	_, groups := doJSON(t, http.MethodGet, ts.URL+"/api/groups", nil)
	raw, _ := json.Marshal(groups)
	if !strings.Contains(string(raw), store.DefaultGroupName) {
		t.Fatalf("expected default group after reset, got %s", raw)
	}
}

func TestDefaultGroupProtectedOverHTTP(t *testing.T) {
	ts, _ := newTestServer(t)

	url := fmt.Sprintf("%s/api/groups/%s?confirm=true", ts.URL, store.DefaultGroupID)
	resp, payload := doJSON(t, http.MethodDelete, url, nil)
	if resp.StatusCode != http.StatusForbidden || payload["code"] != "DEFAULT_GROUP_PROTECTED" {
		t.Fatalf("status=%d payload=%v", resp.StatusCode, payload)
	}
}

func TestBackupDownloadHeaders(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/backup")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	disposition := resp.Header.Get("Content-Disposition")
	if !strings.Contains(disposition, "blockforge-backup-") {
		t.Fatalf("unexpected Content-Disposition %q", disposition)
	}

	var bundle map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&bundle); err != nil {
		t.Fatal(err)
	}
	if bundle["version"] != "2.2.0" {
		t.Fatalf("unexpected bundle version %v", bundle["version"])
	}
}

func TestArchiveUnavailableWithoutConfiguration(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, payload := doJSON(t, http.MethodPost, ts.URL+"/api/backup/archive", nil)
	if resp.StatusCode != http.StatusServiceUnavailable || payload["code"] != "ARCHIVE_UNAVAILABLE" {
		t.Fatalf("status=%d payload=%v", resp.StatusCode, payload)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, payload := doJSON(t, http.MethodGet, ts.URL+"/api/nope", nil)
	if resp.StatusCode != http.StatusNotFound || payload["code"] != "NOT_FOUND" {
		t.Fatalf("status=%d payload=%v", resp.StatusCode, payload)
	}
}
