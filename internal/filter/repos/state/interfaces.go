package state

// Keys under which the session persists its state.
const (
	KeyEnabled = "isEnabled"
	KeyStats   = "stats"
)

// Store is a small persistent key-value store for session state.
// Values are opaque JSON documents.
type Store interface {
	// Get returns the values present for keys. Absent keys are omitted from
	// the result rather than reported as errors.
	Get(keys ...string) (map[string][]byte, error)
	// Set writes all values in a single transaction.
	Set(values map[string][]byte) error
	Close() error
}
