package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"blockforge/api/internal/editor"
	"blockforge/api/internal/export"
	"blockforge/api/internal/history"
	"blockforge/api/internal/kvstore"
	"blockforge/api/internal/notify"
	"blockforge/api/internal/sanitize"
	"blockforge/api/internal/search"
	"blockforge/api/internal/snapshot"
	"blockforge/api/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	kv := kvstore.NewRedisStoreWithClient(client, "blockforge_", nil, notify.Nop{})
	t.Cleanup(func() { kv.Close() })

	state := store.New(kv, nil)
	policy := sanitize.NewPolicy()
	engine := editor.NewEngine(state, policy, notify.Nop{}, nil, 20*time.Millisecond)
	svc := NewService(
		kv,
		state,
		engine,
		policy,
		search.NewService(nil, nil),
		snapshot.NewService(state, nil),
		export.NewService(),
		notify.NewRecorder(nil, 20),
		nil,
		Options{History: history.New(t.TempDir(), nil)},
	)
	svc.Bootstrap(context.Background())
	return svc
}

func domainCode(t *testing.T, err error) string {
	t.Helper()
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	return domainErr.Code
}

func TestDestructiveOperationsRequireConfirmation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	doc := svc.CreateDocument(ctx, "Plan")

	if code := domainCode(t, svc.DeleteDocument(ctx, doc.ID, false)); code != "CONFIRM_REQUIRED" {
		t.Fatalf("delete document: expected CONFIRM_REQUIRED, got %s", code)
	}
	if code := domainCode(t, svc.ResetAll(ctx, false, false)); code != "CONFIRM_REQUIRED" {
		t.Fatalf("reset: expected CONFIRM_REQUIRED, got %s", code)
	}
	if code := domainCode(t, svc.ResetAll(ctx, true, false)); code != "CONFIRM_AGAIN_REQUIRED" {
		t.Fatalf("reset with one confirmation: expected CONFIRM_AGAIN_REQUIRED, got %s", code)
	}

	// Nothing was deleted along the way.
	if _, err := svc.GetDocument(doc.ID); err != nil {
		t.Fatalf("document should survive unconfirmed operations: %v", err)
	}

	if err := svc.DeleteDocument(ctx, doc.ID, true); err != nil {
		t.Fatalf("confirmed delete failed: %v", err)
	}
	if _, err := svc.GetDocument(doc.ID); err == nil {
		t.Fatal("expected document gone after confirmed delete")
	}
}

func TestAssignClientValidatesReference(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	doc := svc.CreateDocument(ctx, "Plan")

	missing := "client_missing"
	if code := domainCode(t, svc.AssignClient(ctx, doc.ID, &missing)); code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND for unknown client, got %s", code)
	}

	client, err := svc.CreateClient(ctx, store.Client{CompanyName: "Acme Kitchen"})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.AssignClient(ctx, doc.ID, &client.ID); err != nil {
		t.Fatal(err)
	}

	// Unlinking always succeeds.
	if err := svc.AssignClient(ctx, doc.ID, nil); err != nil {
		t.Fatal(err)
	}
	got, _ := svc.GetDocument(doc.ID)
	if got.ClientID != nil {
		t.Fatal("expected client link removed")
	}
}

func TestSearchIndexFollowsDocumentLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	doc := svc.CreateDocument(ctx, "Annual HACCP Plan")
	if _, err := svc.AppendBlock(ctx, store.DefaultGroupID, "paragraph"); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetBlockContent(ctx, 0, "<p>cold storage temperatures</p>"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		return len(svc.Search("cold storage", 0, 0).Results) == 1
	}, "document indexed")

	if err := svc.DeleteDocument(ctx, doc.ID, true); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		return len(svc.Search("cold storage", 0, 0).Results) == 0
	}, "document removed from index")
}

func TestBackupRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	doc := svc.CreateDocument(ctx, "Plan")
	if _, err := svc.CreateClient(ctx, store.Client{CompanyName: "Acme Kitchen"}); err != nil {
		t.Fatal(err)
	}

	bundle, filename := svc.ExportBackup()
	if !strings.HasPrefix(filename, "blockforge-backup-") || !strings.HasSuffix(filename, ".json") {
		t.Fatalf("unexpected backup filename %q", filename)
	}
	raw, err := marshalBundle(bundle)
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.ResetAll(ctx, true, true); err != nil {
		t.Fatal(err)
	}
	if items := svc.DocumentList(""); len(items) != 0 {
		t.Fatalf("expected no documents after reset, got %d", len(items))
	}

	if code := domainCode(t, svc.ImportBackup(ctx, raw, false)); code != "CONFIRM_REQUIRED" {
		t.Fatalf("expected CONFIRM_REQUIRED, got %s", code)
	}
	if err := svc.ImportBackup(ctx, raw, true); err != nil {
		t.Fatal(err)
	}

	restored, err := svc.GetDocument(doc.ID)
	if err != nil {
		t.Fatalf("document missing after restore: %v", err)
	}
	if restored.Title != "Plan" {
		t.Fatalf("unexpected restored title %q", restored.Title)
	}
	if len(svc.ClientList()) != 1 {
		t.Fatal("expected client restored")
	}
}

func TestImportRejectsMalformedBundle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	svc.CreateDocument(ctx, "Keep me")

	err := svc.ImportBackup(ctx, []byte("not json"), true)
	if code := domainCode(t, err); code != "INVALID_BUNDLE" {
		t.Fatalf("expected INVALID_BUNDLE, got %s", code)
	}
	if len(svc.DocumentList("")) != 1 {
		t.Fatal("state must be untouched after a rejected import")
	}
}

func TestTemplateFromDocumentRequiresBlocks(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.SaveTemplateFromDocument(ctx, "Empty"); domainCode(t, err) != "NO_OPEN_DOCUMENT" {
		t.Fatal("expected NO_OPEN_DOCUMENT with nothing open")
	}

	svc.CreateDocument(ctx, "Plan")
	if _, err := svc.SaveTemplateFromDocument(ctx, "Empty"); domainCode(t, err) != "VALIDATION_ERROR" {
		t.Fatal("expected VALIDATION_ERROR for a document without blocks")
	}

	if _, err := svc.AppendBlock(ctx, store.DefaultGroupID, "heading1"); err != nil {
		t.Fatal(err)
	}
	tpl, err := svc.SaveTemplateFromDocument(ctx, "Starter")
	if err != nil {
		t.Fatal(err)
	}
	if len(tpl.Blocks) != 1 {
		t.Fatalf("expected one block in template, got %d", len(tpl.Blocks))
	}
}

func TestDocumentHistoryRecordsRevisions(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	doc := svc.CreateDocument(ctx, "Plan")
	if _, err := svc.AppendBlock(ctx, store.DefaultGroupID, "paragraph"); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetBlockContent(ctx, 0, "<p>first</p>"); err != nil {
		t.Fatal(err)
	}

	var revisions []history.CommitInfo
	waitFor(t, func() bool {
		var err error
		revisions, err = svc.History(doc.ID, 10)
		return err == nil && len(revisions) >= 2
	}, "revisions recorded")

	oldest := revisions[len(revisions)-1]
	content, err := svc.HistoryContent(doc.ID, oldest.Hash)
	if err != nil {
		t.Fatal(err)
	}
	if content.Title != "Plan" {
		t.Fatalf("unexpected revision title %q", content.Title)
	}
}

func TestHistoryUnavailableWithoutConfiguration(t *testing.T) {
	svc := newTestService(t)
	svc.history = nil

	_, err := svc.History("doc_1", 10)
	if code := domainCode(t, err); code != "HISTORY_UNAVAILABLE" {
		t.Fatalf("expected HISTORY_UNAVAILABLE, got %s", code)
	}
}

func TestPutBlockTemplateSanitizesContent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	id, err := svc.PutBlockTemplate(ctx, store.DefaultGroupID, "", "Signature",
		`<p onclick="evil()">sign here</p><script>evil()</script>`)
	if err != nil {
		t.Fatal(err)
	}

	group, ok := svc.state.Group(store.DefaultGroupID)
	if !ok {
		t.Fatal("default group missing")
	}
	tpl, ok := group.Blocks[id]
	if !ok {
		t.Fatalf("template %s not stored", id)
	}
	if tpl.Content != "<p>sign here</p>" {
		t.Fatalf("expected sanitized template content in storage, got %q", tpl.Content)
	}
}

func TestDeleteDefaultGroupForbidden(t *testing.T) {
	svc := newTestService(t)

	err := svc.DeleteGroup(context.Background(), store.DefaultGroupID, true)
	if code := domainCode(t, err); code != "DEFAULT_GROUP_PROTECTED" {
		t.Fatalf("expected DEFAULT_GROUP_PROTECTED, got %s", code)
	}
}

func waitFor(t *testing.T, condition func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
