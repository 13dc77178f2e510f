package vector

import "fmt"

// Open attaches to or creates the index of the given backend under path.
// Supported backends: "chromem" (default), "memory".
func Open(backend, path, collection, model string, dimensions int) (Index, error) {
	switch backend {
	case BackendChromem, "":
		return OpenChromem(path, collection, model, dimensions)
	case BackendMemory:
		return OpenMemory(path, model, dimensions)
	default:
		return nil, fmt.Errorf("unknown index backend: %s (supported: chromem, memory)", backend)
	}
}
