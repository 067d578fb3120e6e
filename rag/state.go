package rag

// IngestionState is a step of the ingestion state machine. Transitions are
// strictly Received, Chunked, Embedded, Indexed; any error moves to Failed.
type IngestionState int

const (
	StateReceived IngestionState = iota
	StateChunked
	StateEmbedded
	StateIndexed
	StateFailed
)

func (s IngestionState) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateChunked:
		return "chunked"
	case StateEmbedded:
		return "embedded"
	case StateIndexed:
		return "indexed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s IngestionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
