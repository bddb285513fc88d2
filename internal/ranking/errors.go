package ranking

import "errors"

var (
	// ErrEmptyQuery is returned for a blank query.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrQueryNotProcessed is returned when the query could not be embedded.
	ErrQueryNotProcessed = errors.New("could not process query")

	// ErrDimensionMismatch is returned when a stored vector and the query differ in length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrRerankFailed is returned when the cross-encoder fails and fallback is disabled.
	ErrRerankFailed = errors.New("rerank failed")
)

// Reasons reported with an empty result.
const (
	ReasonNoDocuments = "no_documents"
	ReasonNoSurvivors = "no_survivors"
)
