package domain

import "context"

// Searcher executes one sanitized query against the external auction API.
// Transport failures surface as a nil result, never as an error the strategy
// loop has to handle.
type Searcher interface {
	// SearchEnded retrieves and normalizes historical (closed) auction results.
	SearchEnded(ctx context.Context, query string, maxResultsHint int) *SearchResult

	// SearchLive retrieves and normalizes in-progress auction listings.
	SearchLive(ctx context.Context, query string, maxResultsHint int) *SearchResult
}

// Completer is a single-turn prompt/response call against a language model.
// The relevance filter treats it as an unreliable collaborator: any error is
// absorbed and the heuristic result set is used instead.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
