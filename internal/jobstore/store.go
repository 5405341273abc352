// Package jobstore provides optional durable persistence for swarm job
// records and postback inbox envelopes, adapted from the teacher's JSON-file
// subagent registry into a real table-backed store. A Store falls back to an
// in-memory implementation when no DSN is configured, so callers never need
// to special-case "durability disabled."
package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a job or inbox record doesn't exist.
var ErrNotFound = errors.New("jobstore: record not found")

// JobStatus mirrors a task's terminal lifecycle for persistence purposes.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// JobRecord is the durable record of one subagent run.
type JobRecord struct {
	ID        string
	SwarmID   string
	TaskID    string
	Role      string
	Status    JobStatus
	Result    string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InboxRecord is the durable record of one postback envelope.
type InboxRecord struct {
	ID        string
	SwarmID   string
	Kind      string
	Payload   string
	CreatedAt time.Time
}

// Store persists job records and inbox envelopes.
type Store interface {
	SaveJob(ctx context.Context, job JobRecord) error
	GetJob(ctx context.Context, id string) (JobRecord, error)
	ListJobsBySwarm(ctx context.Context, swarmID string) ([]JobRecord, error)
	SaveInbox(ctx context.Context, rec InboxRecord) error
	ListInbox(ctx context.Context, swarmID string) ([]InboxRecord, error)
	Close() error
}

// Open returns a durable SQLStore when dsn is non-empty, otherwise an
// in-memory MemStore. This is the single entry point callers should use so
// "no DSN configured" never requires a separate code path.
func Open(dsn string) (Store, error) {
	if dsn == "" {
		return NewMemStore(), nil
	}
	return NewSQLStore(dsn)
}

// SQLStore is a jobstore.Store backed by modernc.org/sqlite.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore opens (and migrates) a sqlite-backed store at dsn.
func NewSQLStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("jobstore: open: %w", err)
	}
	s := &SQLStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			swarm_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			role TEXT NOT NULL,
			status TEXT NOT NULL,
			result TEXT,
			error TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_swarm ON jobs(swarm_id);

		CREATE TABLE IF NOT EXISTS inbox (
			id TEXT PRIMARY KEY,
			swarm_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_inbox_swarm ON inbox(swarm_id);
	`)
	if err != nil {
		return fmt.Errorf("jobstore: migrate: %w", err)
	}
	return nil
}

// SaveJob upserts a job record.
func (s *SQLStore) SaveJob(ctx context.Context, job JobRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, swarm_id, task_id, role, status, result, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			result = excluded.result,
			error = excluded.error,
			updated_at = excluded.updated_at
	`, job.ID, job.SwarmID, job.TaskID, job.Role, job.Status, job.Result, job.Error, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("jobstore: save job: %w", err)
	}
	return nil
}

// GetJob fetches one job record by id.
func (s *SQLStore) GetJob(ctx context.Context, id string) (JobRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, swarm_id, task_id, role, status, result, error, created_at, updated_at
		FROM jobs WHERE id = ?
	`, id)

	var job JobRecord
	var status string
	if err := row.Scan(&job.ID, &job.SwarmID, &job.TaskID, &job.Role, &status, &job.Result, &job.Error, &job.CreatedAt, &job.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return JobRecord{}, ErrNotFound
		}
		return JobRecord{}, fmt.Errorf("jobstore: get job: %w", err)
	}
	job.Status = JobStatus(status)
	return job, nil
}

// ListJobsBySwarm returns all job records for one swarm run, oldest first.
func (s *SQLStore) ListJobsBySwarm(ctx context.Context, swarmID string) ([]JobRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, swarm_id, task_id, role, status, result, error, created_at, updated_at
		FROM jobs WHERE swarm_id = ? ORDER BY created_at ASC
	`, swarmID)
	if err != nil {
		return nil, fmt.Errorf("jobstore: list jobs: %w", err)
	}
	defer rows.Close()

	var out []JobRecord
	for rows.Next() {
		var job JobRecord
		var status string
		if err := rows.Scan(&job.ID, &job.SwarmID, &job.TaskID, &job.Role, &status, &job.Result, &job.Error, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, fmt.Errorf("jobstore: scan job: %w", err)
		}
		job.Status = JobStatus(status)
		out = append(out, job)
	}
	return out, rows.Err()
}

// SaveInbox inserts one inbox envelope record.
func (s *SQLStore) SaveInbox(ctx context.Context, rec InboxRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inbox (id, swarm_id, kind, payload, created_at) VALUES (?, ?, ?, ?, ?)
	`, rec.ID, rec.SwarmID, rec.Kind, rec.Payload, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("jobstore: save inbox: %w", err)
	}
	return nil
}

// ListInbox returns all inbox envelopes for one swarm run, oldest first.
func (s *SQLStore) ListInbox(ctx context.Context, swarmID string) ([]InboxRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, swarm_id, kind, payload, created_at FROM inbox WHERE swarm_id = ? ORDER BY created_at ASC
	`, swarmID)
	if err != nil {
		return nil, fmt.Errorf("jobstore: list inbox: %w", err)
	}
	defer rows.Close()

	var out []InboxRecord
	for rows.Next() {
		var rec InboxRecord
		if err := rows.Scan(&rec.ID, &rec.SwarmID, &rec.Kind, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("jobstore: scan inbox: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error { return s.db.Close() }

// MemStore is an in-memory Store used when no DSN is configured.
type MemStore struct {
	mu    sync.Mutex
	jobs  map[string]JobRecord
	inbox map[string][]InboxRecord
}

// NewMemStore constructs an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{jobs: make(map[string]JobRecord), inbox: make(map[string][]InboxRecord)}
}

func (m *MemStore) SaveJob(ctx context.Context, job JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *MemStore) GetJob(ctx context.Context, id string) (JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return JobRecord{}, ErrNotFound
	}
	return job, nil
}

func (m *MemStore) ListJobsBySwarm(ctx context.Context, swarmID string) ([]JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []JobRecord
	for _, job := range m.jobs {
		if job.SwarmID == swarmID {
			out = append(out, job)
		}
	}
	return out, nil
}

func (m *MemStore) SaveInbox(ctx context.Context, rec InboxRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbox[rec.SwarmID] = append(m.inbox[rec.SwarmID], rec)
	return nil
}

func (m *MemStore) ListInbox(ctx context.Context, swarmID string) ([]InboxRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]InboxRecord(nil), m.inbox[swarmID]...), nil
}

func (m *MemStore) Close() error { return nil }
