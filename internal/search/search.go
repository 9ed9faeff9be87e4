package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ClientName string `json:"clientName,omitempty"`
	Snippet    string `json:"snippet,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text   string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over documents.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// DocumentRecord is the data we index for a document: its title, resolved
// client name and the text content of its blocks with markup stripped.
type DocumentRecord struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ClientName string `json:"clientName"`
	Text       string `json:"text"`
}
