package store

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"blockforge/api/internal/kvstore"
)

func newTestState(t *testing.T) (*State, *kvstore.RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	kv := kvstore.NewRedisStoreWithClient(client, "blockforge_", nil, nil)
	t.Cleanup(func() { kv.Close() })
	state := New(kv, nil)
	state.LoadAll(context.Background())
	return state, kv
}

func TestLoadAllFirstRunSeedsDefaults(t *testing.T) {
	state, _ := newTestState(t)

	groups := state.Groups()
	if len(groups) != 1 {
		t.Fatalf("expected one group on first run, got %d", len(groups))
	}
	def, ok := groups[DefaultGroupID]
	if !ok {
		t.Fatalf("expected default group %q", DefaultGroupID)
	}
	if def.Name != DefaultGroupName {
		t.Fatalf("expected default group name %q, got %q", DefaultGroupName, def.Name)
	}
	if len(def.Blocks) != 7 {
		t.Fatalf("expected seven factory templates, got %d", len(def.Blocks))
	}
}

func TestCreateDocumentBecomesActive(t *testing.T) {
	state, _ := newTestState(t)

	doc := state.CreateDocument(context.Background(), "Plan")
	if doc.ID == "" || !strings.HasPrefix(doc.ID, "doc_") {
		t.Fatalf("unexpected id %q", doc.ID)
	}
	if state.ActiveDocumentID() != doc.ID {
		t.Fatal("expected new document to be active")
	}
	if len(doc.Blocks) != 0 {
		t.Fatal("expected empty block sequence")
	}
	if doc.UpdatedAt.Before(doc.CreatedAt) {
		t.Fatal("expected UpdatedAt >= CreatedAt")
	}
}

func TestUpdateDocumentMissingIDIsNoop(t *testing.T) {
	state, _ := newTestState(t)

	if ok := state.UpdateDocument(context.Background(), "doc_missing", func(d *Document) {
		d.Title = "x"
	}); ok {
		t.Fatal("expected update of unknown id to report false")
	}
}

func TestDeleteActiveDocumentClearsActive(t *testing.T) {
	state, _ := newTestState(t)
	ctx := context.Background()

	doc := state.CreateDocument(ctx, "Plan")
	if ok := state.DeleteDocument(ctx, doc.ID); !ok {
		t.Fatal("expected delete to succeed")
	}
	if state.ActiveDocumentID() != "" {
		t.Fatal("expected active reference cleared")
	}
	if _, ok := state.Document(doc.ID); ok {
		t.Fatal("expected document gone")
	}
}

func TestDuplicateDocumentIsolation(t *testing.T) {
	state, _ := newTestState(t)
	ctx := context.Background()

	doc := state.CreateDocument(ctx, "Plan")
	state.UpdateDocument(ctx, doc.ID, func(d *Document) {
		d.Blocks = []Block{
			{ID: "block_1", Name: "A", Content: "<p>a</p>"},
			{ID: "block_2", Name: "B", Content: "<p>b</p>"},
			{ID: "block_3", Name: "C", Content: "<p>c</p>"},
		}
	})

	dup, ok := state.DuplicateDocument(ctx, doc.ID)
	if !ok {
		t.Fatal("expected duplicate to succeed")
	}
	if dup.ID == doc.ID {
		t.Fatal("expected a fresh id")
	}
	if !strings.HasSuffix(dup.Title, CopySuffix) {
		t.Fatalf("expected copy suffix, got %q", dup.Title)
	}
	if len(dup.Blocks) != 3 {
		t.Fatalf("expected three blocks, got %d", len(dup.Blocks))
	}

	state.UpdateDocument(ctx, dup.ID, func(d *Document) {
		d.Blocks[0].Content = "<p>changed</p>"
	})
	original, _ := state.Document(doc.ID)
	if original.Blocks[0].Content != "<p>a</p>" {
		t.Fatal("expected original untouched by edits to the duplicate")
	}
}

func TestDocumentSurvivesReload(t *testing.T) {
	state, kv := newTestState(t)
	ctx := context.Background()

	doc := state.CreateDocument(ctx, "Plan")
	state.UpdateDocument(ctx, doc.ID, func(d *Document) {
		d.Blocks = []Block{{ID: "block_1", Name: "Paragraph", Content: "<p>Hello</p>"}}
	})

	reloaded := New(kv, nil)
	reloaded.LoadAll(ctx)
	got, ok := reloaded.Document(doc.ID)
	if !ok {
		t.Fatal("expected document after reload")
	}
	if got.Blocks[0].Content != "<p>Hello</p>" {
		t.Fatalf("expected content to survive reload, got %q", got.Blocks[0].Content)
	}
}

func TestDeleteClientKeepsDocuments(t *testing.T) {
	state, _ := newTestState(t)
	ctx := context.Background()

	client := state.CreateClient(ctx, Client{CompanyName: "Acme"})
	doc := state.CreateDocument(ctx, "Plan")
	state.UpdateDocument(ctx, doc.ID, func(d *Document) {
		d.ClientID = &client.ID
	})

	state.DeleteClient(ctx, client.ID)

	got, ok := state.Document(doc.ID)
	if !ok {
		t.Fatal("expected document to survive client deletion")
	}
	if got.ClientID == nil || *got.ClientID != client.ID {
		t.Fatal("expected dangling client reference kept on the document")
	}
	if _, ok := state.Client(client.ID); ok {
		t.Fatal("expected client gone")
	}
}

func TestClientAccessorsDetachRiskAssessment(t *testing.T) {
	state, _ := newTestState(t)
	ctx := context.Background()

	assessment := NewRiskAssessment()
	assessment.GeneralInformation.CompanyData["company_name"] = "Acme Kitchen"
	assessment.BasicData.JobRoles = []string{"cook"}
	assessment.BasicData.EmployeeAgeGrouping["cook"] = []string{"30-40"}
	created := state.CreateClient(ctx, Client{CompanyName: "Acme", RiskAssessment: assessment})

	// Mutating the caller's assessment after create must not reach state.
	assessment.GeneralInformation.CompanyData["company_name"] = "changed outside"

	got, ok := state.Client(created.ID)
	if !ok {
		t.Fatal("client missing")
	}
	if got.RiskAssessment.GeneralInformation.CompanyData["company_name"] != "Acme Kitchen" {
		t.Fatal("stored assessment shares the caller's maps")
	}

	// Mutating an accessor copy must not reach state either.
	got.RiskAssessment.GeneralInformation.CompanyData["company_name"] = "mutated copy"
	got.RiskAssessment.BasicData.JobRoles[0] = "mutated"
	got.RiskAssessment.BasicData.EmployeeAgeGrouping["cook"][0] = "mutated"

	fresh, _ := state.Client(created.ID)
	ga := fresh.RiskAssessment
	if ga.GeneralInformation.CompanyData["company_name"] != "Acme Kitchen" ||
		ga.BasicData.JobRoles[0] != "cook" ||
		ga.BasicData.EmployeeAgeGrouping["cook"][0] != "30-40" {
		t.Fatalf("accessor copy shares internals with state: %+v", ga)
	}

	// Export hands out detached copies too.
	snap := state.Export()
	snap.Clients[created.ID].RiskAssessment.GeneralInformation.CompanyData["company_name"] = "mutated export"
	fresh, _ = state.Client(created.ID)
	if fresh.RiskAssessment.GeneralInformation.CompanyData["company_name"] != "Acme Kitchen" {
		t.Fatal("export shares assessment maps with state")
	}
}

func TestNextBlockIDMonotonicAcrossReload(t *testing.T) {
	state, kv := newTestState(t)
	ctx := context.Background()

	if id := state.NextBlockID(ctx); id != "block_1" {
		t.Fatalf("expected block_1, got %q", id)
	}
	if id := state.NextBlockID(ctx); id != "block_2" {
		t.Fatalf("expected block_2, got %q", id)
	}

	reloaded := New(kv, nil)
	reloaded.LoadAll(ctx)
	if id := reloaded.NextBlockID(ctx); id != "block_3" {
		t.Fatalf("expected counter to survive reload, got %q", id)
	}
}

func TestDeleteDefaultGroupRejected(t *testing.T) {
	state, _ := newTestState(t)

	if err := state.DeleteGroup(context.Background(), DefaultGroupID); err != ErrDefaultGroup {
		t.Fatalf("expected ErrDefaultGroup, got %v", err)
	}
}

func TestCreateGroupAllocatesSequentialIDs(t *testing.T) {
	state, _ := newTestState(t)
	ctx := context.Background()

	id1, _ := state.CreateGroup(ctx, "Kitchen")
	id2, _ := state.CreateGroup(ctx, "Office")
	if id1 != "group-1" || id2 != "group-2" {
		t.Fatalf("expected group-1 and group-2, got %q and %q", id1, id2)
	}

	if err := state.DeleteGroup(ctx, id1); err != nil {
		t.Fatalf("expected delete to succeed, got %v", err)
	}
	// Ids are never reused after deletion.
	id3, _ := state.CreateGroup(ctx, "Warehouse")
	if id3 != "group-3" {
		t.Fatalf("expected group-3, got %q", id3)
	}
}

func TestResetAllRestoresFactoryDefaults(t *testing.T) {
	state, _ := newTestState(t)
	ctx := context.Background()

	state.CreateDocument(ctx, "Plan")
	state.CreateClient(ctx, Client{CompanyName: "Acme"})
	state.CreateGroup(ctx, "Kitchen")
	state.NextBlockID(ctx)

	state.ResetAll(ctx)

	if len(state.Documents()) != 0 || len(state.Clients()) != 0 || len(state.Templates()) != 0 {
		t.Fatal("expected collections emptied")
	}
	groups := state.Groups()
	if len(groups) != 1 {
		t.Fatalf("expected exactly the default group, got %d groups", len(groups))
	}
	if len(groups[DefaultGroupID].Blocks) != 7 {
		t.Fatal("expected the seven factory templates back")
	}
	if id := state.NextBlockID(ctx); id != "block_1" {
		t.Fatalf("expected block counter reset, got %q", id)
	}
}

func TestClientDisplayNameFallsBackToAssessment(t *testing.T) {
	ra := NewRiskAssessment()
	ra.GeneralInformation.CompanyData["company_name"] = "Acme Kft"

	tests := []struct {
		name   string
		client Client
		want   string
	}{
		{"flat field wins", Client{CompanyName: "Acme", RiskAssessment: ra}, "Acme"},
		{"assessment fallback", Client{RiskAssessment: ra}, "Acme Kft"},
		{"nothing set", Client{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.client.DisplayName(); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
