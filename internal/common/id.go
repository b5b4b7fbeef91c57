package common

import (
	"github.com/google/uuid"
)

// NewSessionID generates a unique search session ID
// Format: ss_<uuid>
func NewSessionID() string {
	return "ss_" + uuid.New().String()
}
