package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type pendingRegistrations struct {
	db    bun.IDB
	guard *storeGuard
}

var _ PendingStore = (*pendingRegistrations)(nil)

// NewPendingStore returns a bun PendingStore bound to db
func NewPendingStore(db bun.IDB) PendingStore {
	return &pendingRegistrations{db: db}
}

func (s *pendingRegistrations) Create(ctx context.Context, record *PendingRegistration) (*PendingRegistration, error) {
	if record == nil {
		return nil, withMeta(ErrUnprocessableInput, map[string]any{"reason": "pending registration is required"})
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	err := s.guard.run(func() error {
		_, err := s.db.NewInsert().Model(record).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *pendingRegistrations) Find(ctx context.Context, id uuid.UUID) (*PendingRegistration, error) {
	record := &PendingRegistration{}
	err := s.guard.run(func() error {
		err := s.db.NewSelect().
			Model(record).
			Where("?TableAlias.id = ?", id).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return withMeta(ErrPendingNotFound, map[string]any{"pair_id": id.String()})
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Retire deletes the record. Only one caller can observe a deleted row,
// every other concurrent caller gets ErrPendingNotFound.
func (s *pendingRegistrations) Retire(ctx context.Context, id uuid.UUID) error {
	return s.guard.run(func() error {
		res, err := s.db.NewDelete().
			Model((*PendingRegistration)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return withMeta(ErrPendingNotFound, map[string]any{"pair_id": id.String(), "reason": "already retired"})
		}
		return nil
	})
}

func (s *pendingRegistrations) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	var purged int64
	err := s.guard.run(func() error {
		res, err := s.db.NewDelete().
			Model((*PendingRegistration)(nil)).
			Where("expires_at <= ?", before.UTC()).
			Exec(ctx)
		if err != nil {
			return err
		}
		purged, err = res.RowsAffected()
		return err
	})
	return purged, err
}
