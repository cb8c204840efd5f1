package storage

import (
	"github.com/segmentio/ksuid"
)

// NextId - Returns a new globally unique ID for sessions, runs, and audit records. IDs sort roughly by creation time.
func NextId() string {
	return ksuid.New().String()
}
