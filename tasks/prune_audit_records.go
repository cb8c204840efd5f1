package tasks

import (
	"context"
	"log"
	"time"

	"github.com/matrix-org/policyrelay/storage"
)

// PruneAuditRecords - Deletes audit records older than the retention period. A retention of zero or less keeps
// records forever.
func PruneAuditRecords(db storage.PersistentStorage, retentionDays int) {
	if retentionDays <= 0 {
		log.Println("Skipping audit record pruning: retention is disabled")
		return
	}

	log.Println("Pruning audit records...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	before := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	count, err := db.DeleteAuditRecordsBefore(ctx, before)
	if err != nil {
		log.Printf("Failed to prune audit records: %v", err)
		return
	}

	log.Printf("Finished pruning audit records: %d deleted", count)
}
