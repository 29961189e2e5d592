package ports

// Frontend is a user-facing surface over the scan pipeline
type Frontend interface {
	// Start starts the frontend. It must not block.
	Start() error

	// Stop stops the frontend and releases its resources
	Stop() error
}
