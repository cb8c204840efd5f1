package test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/matrix-org/policyrelay/storage"
	"github.com/stretchr/testify/assert"
)

var SimulatedError = errors.New("simulated error")

// ErrorSessionId - Storage operations on this session ID always fail with SimulatedError.
const ErrorSessionId = "ERROR"

type MemoryStorage struct {
	// Implements storage.PersistentStorage

	t            *testing.T
	lock         sync.Mutex
	auditRecords map[string]*storage.StoredAuditRecord // record ID -> record
}

func NewMemoryStorage(t *testing.T) *MemoryStorage {
	return &MemoryStorage{
		t:            t,
		auditRecords: make(map[string]*storage.StoredAuditRecord),
	}
}

func (m *MemoryStorage) Close() error {
	// no-op
	return nil
}

func (m *MemoryStorage) InsertAuditRecord(ctx context.Context, record *storage.StoredAuditRecord) error {
	assert.NotNil(m.t, ctx, "context is required")
	if record.SessionId == ErrorSessionId {
		return SimulatedError
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	if _, ok := m.auditRecords[record.Id]; ok {
		return errors.New("duplicate audit record ID")
	}
	clone := *record
	clone.CategoryCodes = append(make([]string, 0, len(record.CategoryCodes)), record.CategoryCodes...)
	m.auditRecords[record.Id] = &clone
	return nil
}

func (m *MemoryStorage) GetAuditRecordsForSession(ctx context.Context, sessionId string) ([]*storage.StoredAuditRecord, error) {
	assert.NotNil(m.t, ctx, "context is required")
	if sessionId == ErrorSessionId {
		return nil, SimulatedError
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	records := make([]*storage.StoredAuditRecord, 0)
	for _, r := range m.auditRecords {
		if r.SessionId == sessionId {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAtMillis == records[j].CreatedAtMillis {
			return records[i].Id < records[j].Id
		}
		return records[i].CreatedAtMillis < records[j].CreatedAtMillis
	})
	return records, nil
}

func (m *MemoryStorage) DeleteAuditRecordsBefore(ctx context.Context, before time.Time) (int64, error) {
	assert.NotNil(m.t, ctx, "context is required")

	m.lock.Lock()
	defer m.lock.Unlock()
	count := int64(0)
	for id, r := range m.auditRecords {
		if r.CreatedAtMillis < before.UnixMilli() {
			delete(m.auditRecords, id)
			count++
		}
	}
	return count, nil
}

// Len - The number of audit records currently held.
func (m *MemoryStorage) Len() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.auditRecords)
}
