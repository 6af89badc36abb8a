package utils

import "github.com/google/uuid"

// NewConnID returns an identifier for one push connection, used to
// correlate log lines across that connection's lifetime.
func NewConnID() string {
	return uuid.NewString()
}
