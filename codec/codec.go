// Package codec centralizes snapshot payload encoding.
//
// Persisted snapshots are self-describing: the container header records the
// codec name, and the appropriate codec is selected by name on load.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// Default is the default codec used by the library.
//
// This affects newly-created snapshots. Existing persisted files are
// self-describing and are opened by selecting the codec by name.
var Default Codec = GoJSON{}
