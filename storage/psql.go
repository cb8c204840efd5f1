package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/DavidHuie/gomigrate"
	"github.com/lib/pq"
	"github.com/matrix-org/policyrelay/metrics/dbmetrics"
)

type PostgresStorageConfig struct {
	Uri          string
	MaxOpenConns int
	MaxIdleConns int
	// File path to the directory containing migrations
	MigrationsPath string
}

type PostgresStorage struct {
	// Implements PersistentStorage

	db *sql.DB

	auditRecordInsert           *sql.Stmt
	auditRecordSelectForSession *sql.Stmt
	auditRecordDeleteBefore     *sql.Stmt
}

func NewPostgresStorage(config *PostgresStorageConfig) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", config.Uri)
	if err != nil {
		return nil, errors.Join(errors.New("failed to open database"), err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &PostgresStorage{
		db: db,
	}
	if err = s.prepare(config.MigrationsPath); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to run migrations with path '%s'", config.MigrationsPath), err)
	}
	return s, nil
}

func (s *PostgresStorage) prepare(migrationsDir string) error {
	// Migrate first
	if migrator, err := gomigrate.NewMigratorWithLogger(s.db, gomigrate.Postgres{}, migrationsDir, log.Default()); err != nil {
		return err
	} else {
		if err = migrator.Migrate(); err != nil {
			return err
		}
	}

	// Now set up all the prepared statements
	var err error
	if s.auditRecordInsert, err = s.db.Prepare("INSERT INTO audit_records (id, run_id, session_id, triggering_role, category_codes, unrecognized, created_ts) VALUES ($1, $2, $3, $4, $5, $6, $7);"); err != nil {
		return err
	}
	if s.auditRecordSelectForSession, err = s.db.Prepare("SELECT id, run_id, session_id, triggering_role, category_codes, unrecognized, created_ts FROM audit_records WHERE session_id = $1 ORDER BY created_ts ASC, id ASC;"); err != nil {
		return err
	}
	if s.auditRecordDeleteBefore, err = s.db.Prepare("DELETE FROM audit_records WHERE created_ts < $1;"); err != nil {
		return err
	}

	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func (s *PostgresStorage) InsertAuditRecord(ctx context.Context, record *StoredAuditRecord) error {
	t := dbmetrics.StartDatabaseTimer("InsertAuditRecord")
	defer t.ObserveDuration()

	codes := record.CategoryCodes
	if codes == nil {
		codes = make([]string, 0) // the column is NOT NULL
	}
	_, err := s.auditRecordInsert.ExecContext(ctx, record.Id, record.RunId, record.SessionId, record.TriggeringRole, pq.Array(codes), record.Unrecognized, record.CreatedAtMillis)
	return err
}

func (s *PostgresStorage) GetAuditRecordsForSession(ctx context.Context, sessionId string) ([]*StoredAuditRecord, error) {
	t := dbmetrics.StartDatabaseTimer("GetAuditRecordsForSession")
	defer t.ObserveDuration()

	rows, err := s.auditRecordSelectForSession.QueryContext(ctx, sessionId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return make([]*StoredAuditRecord, 0), nil
		}
		return nil, err
	}
	defer rows.Close()

	records := make([]*StoredAuditRecord, 0)
	for rows.Next() {
		record := &StoredAuditRecord{}
		err = rows.Scan(&record.Id, &record.RunId, &record.SessionId, &record.TriggeringRole, pq.Array(&record.CategoryCodes), &record.Unrecognized, &record.CreatedAtMillis)
		if err != nil {
			return nil, err
		}
		if record.CategoryCodes == nil {
			record.CategoryCodes = make([]string, 0)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *PostgresStorage) DeleteAuditRecordsBefore(ctx context.Context, before time.Time) (int64, error) {
	t := dbmetrics.StartDatabaseTimer("DeleteAuditRecordsBefore")
	defer t.ObserveDuration()

	res, err := s.auditRecordDeleteBefore.ExecContext(ctx, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
