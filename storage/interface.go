package storage

import (
	"context"
	"time"
)

// StoredAuditRecord - A record of one refusal. Records never carry message content.
type StoredAuditRecord struct {
	Id              string   `json:"id"`
	RunId           string   `json:"run_id"`
	SessionId       string   `json:"session_id"` // empty for stateless runs
	TriggeringRole  string   `json:"triggering_role"`
	CategoryCodes   []string `json:"category_codes"`
	Unrecognized    bool     `json:"unrecognized"`
	CreatedAtMillis int64    `json:"created_at_ms"`
}

func (r *StoredAuditRecord) CreatedAt() time.Time {
	return time.UnixMilli(r.CreatedAtMillis)
}

type PersistentStorage interface {
	Close() error

	InsertAuditRecord(ctx context.Context, record *StoredAuditRecord) error
	// GetAuditRecordsForSession - returns the session's audit records, oldest first. An unknown session returns an
	// empty slice.
	GetAuditRecordsForSession(ctx context.Context, sessionId string) ([]*StoredAuditRecord, error)
	// DeleteAuditRecordsBefore - removes records created before the given time, returning the number removed.
	DeleteAuditRecordsBefore(ctx context.Context, before time.Time) (int64, error)
}
