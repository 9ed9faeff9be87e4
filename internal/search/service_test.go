package search

import "testing"

func seedService() *Service {
	s := NewService(nil, NewMemory())
	s.IndexDocument(DocumentRecord{ID: "doc_1", Title: "HACCP Plan", ClientName: "Acme Kitchen", Text: "Cooling procedures for the cold chain"})
	s.IndexDocument(DocumentRecord{ID: "doc_2", Title: "Cleaning Schedule", ClientName: "Beta Cafe", Text: "Weekly deep clean"})
	s.IndexDocument(DocumentRecord{ID: "doc_3", Title: "Audit Notes", ClientName: "", Text: ""})
	return s
}

func TestSearchMatchesTitleClientAndText(t *testing.T) {
	s := seedService()

	tests := []struct {
		query string
		want  []string
	}{
		{"plan", []string{"doc_1"}},
		{"beta", []string{"doc_2"}},
		{"cold chain", []string{"doc_1"}},
		{"", []string{"doc_1", "doc_2", "doc_3"}},
		{"nothing here", nil},
	}
	for _, tt := range tests {
		resp := s.Search(Query{Text: tt.query})
		if resp.Total != len(tt.want) {
			t.Fatalf("query %q: expected %d hits, got %d", tt.query, len(tt.want), resp.Total)
		}
		seen := map[string]bool{}
		for _, r := range resp.Results {
			seen[r.ID] = true
		}
		for _, id := range tt.want {
			if !seen[id] {
				t.Fatalf("query %q: expected hit %s", tt.query, id)
			}
		}
	}
}

func TestDeleteRemovesFromIndex(t *testing.T) {
	s := seedService()

	s.DeleteDocument("doc_1")
	resp := s.Search(Query{Text: "plan"})
	if resp.Total != 0 {
		t.Fatalf("expected no hits after delete, got %d", resp.Total)
	}
}

func TestReindexAllReplacesIndex(t *testing.T) {
	s := seedService()

	s.ReindexAll([]DocumentRecord{{ID: "doc_9", Title: "Fresh Start"}})
	if resp := s.Search(Query{Text: "plan"}); resp.Total != 0 {
		t.Fatal("expected old records gone after reindex")
	}
	if resp := s.Search(Query{Text: "fresh"}); resp.Total != 1 {
		t.Fatal("expected new record searchable after reindex")
	}
}

func TestSearchPagination(t *testing.T) {
	s := NewService(nil, NewMemory())
	s.IndexDocument(DocumentRecord{ID: "doc_1", Title: "Alpha"})
	s.IndexDocument(DocumentRecord{ID: "doc_2", Title: "Bravo"})
	s.IndexDocument(DocumentRecord{ID: "doc_3", Title: "Charlie"})

	resp := s.Search(Query{Limit: 2})
	if resp.Total != 3 || len(resp.Results) != 2 {
		t.Fatalf("expected total 3 with 2 rows, got total %d rows %d", resp.Total, len(resp.Results))
	}
	resp = s.Search(Query{Limit: 2, Offset: 2})
	if len(resp.Results) != 1 || resp.Results[0].ID != "doc_3" {
		t.Fatalf("expected last page with doc_3, got %v", resp.Results)
	}
}
