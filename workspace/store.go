package workspace

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-phone-auth"
)

// Store persists composites and tasks
type Store interface {
	CreateComposite(ctx context.Context, c *Composite) error
	FindComposite(ctx context.Context, id uuid.UUID) (*Composite, error)
	ListComposites(ctx context.Context, ownerID uuid.UUID) ([]*Composite, error)
	UpdateComposite(ctx context.Context, c *Composite) error
	DeleteComposite(ctx context.Context, id uuid.UUID) error

	CreateTask(ctx context.Context, t *Task) error
	FindTask(ctx context.Context, id uuid.UUID) (*Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]*Task, error)
	UpdateTask(ctx context.Context, t *Task) error
	DeleteTask(ctx context.Context, id uuid.UUID) error
}

type bunStore struct {
	db *bun.DB
}

var _ Store = (*bunStore)(nil)

// NewStore returns a bun backed Store
func NewStore(db *bun.DB) Store {
	return &bunStore{db: db}
}

func (s *bunStore) CreateComposite(ctx context.Context, c *Composite) error {
	_, err := s.db.NewInsert().Model(c).Exec(ctx)
	return auth.StoreError(err)
}

// FindComposite loads a composite with its tasks
func (s *bunStore) FindComposite(ctx context.Context, id uuid.UUID) (*Composite, error) {
	record := &Composite{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, withMeta(ErrCompositeNotFound, map[string]any{"composite_id": id.String()})
	}
	if err != nil {
		return nil, auth.StoreError(err)
	}

	tasks, err := s.ListTasks(ctx, TaskFilter{CompositeID: &record.ID})
	if err != nil {
		return nil, err
	}
	record.Tasks = tasks
	return record, nil
}

func (s *bunStore) ListComposites(ctx context.Context, ownerID uuid.UUID) ([]*Composite, error) {
	records := []*Composite{}
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.owner_id = ?", ownerID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, auth.StoreError(err)
	}
	return records, nil
}

func (s *bunStore) UpdateComposite(ctx context.Context, c *Composite) error {
	res, err := s.db.NewUpdate().
		Model(c).
		Column("name", "description", "status", "updated_at", "closed_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return auth.StoreError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return withMeta(ErrCompositeNotFound, map[string]any{"composite_id": c.ID.String()})
	}
	return nil
}

// DeleteComposite removes the composite and its tasks in one transaction
func (s *bunStore) DeleteComposite(ctx context.Context, id uuid.UUID) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*Task)(nil)).
			Where("composite_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}

		res, err := tx.NewDelete().
			Model((*Composite)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return withMeta(ErrCompositeNotFound, map[string]any{"composite_id": id.String()})
		}
		return nil
	})
	return auth.StoreError(err)
}

func (s *bunStore) CreateTask(ctx context.Context, t *Task) error {
	_, err := s.db.NewInsert().Model(t).Exec(ctx)
	return auth.StoreError(err)
}

func (s *bunStore) FindTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	record := &Task{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, withMeta(ErrTaskNotFound, map[string]any{"task_id": id.String()})
	}
	if err != nil {
		return nil, auth.StoreError(err)
	}
	return record, nil
}

func (s *bunStore) ListTasks(ctx context.Context, filter TaskFilter) ([]*Task, error) {
	records := []*Task{}
	q := s.db.NewSelect().Model(&records)
	if filter.CompositeID != nil {
		q = q.Where("?TableAlias.composite_id = ?", *filter.CompositeID)
	} else {
		q = q.Where("?TableAlias.owner_id = ?", filter.OwnerID)
	}
	if err := q.Order("created_at ASC").Scan(ctx); err != nil {
		return nil, auth.StoreError(err)
	}
	return records, nil
}

func (s *bunStore) UpdateTask(ctx context.Context, t *Task) error {
	res, err := s.db.NewUpdate().
		Model(t).
		Column("description", "level", "status", "updated_at", "closed_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return auth.StoreError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return withMeta(ErrTaskNotFound, map[string]any{"task_id": t.ID.String()})
	}
	return nil
}

func (s *bunStore) DeleteTask(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.NewDelete().
		Model((*Task)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return auth.StoreError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return withMeta(ErrTaskNotFound, map[string]any{"task_id": id.String()})
	}
	return nil
}
