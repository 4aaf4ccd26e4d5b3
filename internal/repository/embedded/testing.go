package embedded

import "go.uber.org/zap"

// NewMemoryClient opens an in-memory backend and a client over it.
// Caller closes the backend.
func NewMemoryClient(vectorDim int) (*Client, *Backend, error) {
	backend, err := OpenBackend("", true, zap.NewNop())
	if err != nil {
		return nil, nil, err
	}
	return New(backend, vectorDim, nil), backend, nil
}
