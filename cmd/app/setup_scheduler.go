package main

import (
	"crypto/rand"
	"log"
	"math/big"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/matrix-org/policyrelay/config"
	"github.com/matrix-org/policyrelay/storage"
	"github.com/matrix-org/policyrelay/tasks"
)

func setupScheduler(scheduler gocron.Scheduler, db storage.PersistentStorage, instanceConfig *config.InstanceConfig) error {
	if db == nil {
		log.Println("Skipping audit retention task: no database configured")
		return nil
	}
	return schedulePruneTask(scheduler, db, instanceConfig)
}

func schedulePruneTask(scheduler gocron.Scheduler, db storage.PersistentStorage, instanceConfig *config.InstanceConfig) error {
	// We schedule this to run every 6 hours +/- 30 minutes to avoid overlapping calls from other processes.
	pruneTask, err := scheduler.NewJob(gocron.DurationRandomJob(330*time.Minute, 390*time.Minute), gocron.NewTask(tasks.PruneAuditRecords, db, instanceConfig.AuditRetentionDays), gocron.WithName("PruneAuditRecords"))
	if err != nil {
		return err
	}

	log.Printf("Scheduled audit retention task every ~6 hours (keeping %d days): %s", instanceConfig.AuditRetentionDays, pruneTask.ID())
	runTaskNowish(pruneTask)

	return nil
}

// runTaskNowish - Runs a gocron task as quickly as possible, with a small delay to avoid overlapping calls. The task will
// wait asynchronously to run, so this will return immediately regardless of whether the task is running.
func runTaskNowish(task gocron.Job) {
	go func() {
		// we don't *need* a cryptographic random number here, but security audits might complain if we don't
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			log.Printf("Non-fatal error generating jitter for task %s: %v", task.ID(), err)
			n = big.NewInt(4)
		}
		<-time.After(time.Duration(n.Int64()) * time.Second)
		if err = task.RunNow(); err != nil {
			log.Printf("Non-fatal error trying to run task %s immediately: %v", task.ID(), err)
		}
	}()
}
