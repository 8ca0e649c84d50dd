// Package tasks is the minimal tenant-partitioned collaborator sitting
// behind the auth core. Every task belongs to exactly one organization;
// the transport layer guarantees callers only ever reach their own.
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"tasklane.app/internal/ids"
)

// StatusTodo is the initial status of a created task.
const StatusTodo = "todo"

var ErrInvalidTitle = errors.New("tasks: title is required")

// Task is a unit of work scoped to an organization.
type Task struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists tasks.
type Store interface {
	Create(ctx context.Context, t *Task) error
	ListByOrg(ctx context.Context, orgID string) ([]Task, error)
}

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, t *Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrInvalidTitle
	}
	if t.ID == "" {
		t.ID = ids.New()
	}
	if t.Status == "" {
		t.Status = StatusTodo
	}
	return s.db.QueryRowContext(ctx,
		`insert into tasks(id, org_id, title, status, created_by) values($1,$2,$3,$4,$5)
		 returning created_at`,
		t.ID, t.OrgID, t.Title, t.Status, t.CreatedBy,
	).Scan(&t.CreatedAt)
}

func (s *PGStore) ListByOrg(ctx context.Context, orgID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, org_id, title, status, created_by, created_at from tasks
		 where org_id=$1 order by created_at desc`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.OrgID, &t.Title, &t.Status, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// MemStore implements Store in process for tests and local development.
type MemStore struct {
	mu    sync.Mutex
	tasks []Task
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Create(ctx context.Context, t *Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrInvalidTitle
	}
	if t.ID == "" {
		t.ID = ids.New()
	}
	if t.Status == "" {
		t.Status = StatusTodo
	}
	t.CreatedAt = time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, *t)
	return nil
}

func (s *MemStore) ListByOrg(ctx context.Context, orgID string) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []Task
	for i := len(s.tasks) - 1; i >= 0; i-- {
		if s.tasks[i].OrgID == orgID {
			result = append(result, s.tasks[i])
		}
	}
	return result, nil
}
