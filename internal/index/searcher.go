package index

// Searcher is the read side of the index used by the API and MCP layers.
type Searcher interface {
	Search(query string, limit int) ([]SearchResult, error)
}

// Verify *DB satisfies Searcher at compile time.
var _ Searcher = (*DB)(nil)
