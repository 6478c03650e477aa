package workspace

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"

	auth "github.com/goliatone/go-phone-auth"
)

// CreateCompositeMessage creates a composite owned by the actor
type CreateCompositeMessage struct {
	Name        string `json:"composite_name"`
	Description string `json:"composite_description"`
}

func (m CreateCompositeMessage) Type() string { return "workspace.composite.create" }

func (m CreateCompositeMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&m.Description, validation.Length(0, 2000)),
	)
}

// CreateTaskMessage creates a task, inside a composite when CompositeID is set
type CreateTaskMessage struct {
	Description string     `json:"task_description"`
	Level       Level      `json:"task_level"`
	CompositeID *uuid.UUID `json:"composite_id,omitempty"`
}

func (m CreateTaskMessage) Type() string { return "workspace.task.create" }

func (m CreateTaskMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Description, validation.Required, validation.Length(1, 2000)),
		validation.Field(&m.Level, validation.Required, validation.In(LevelFree, LevelOptimal, LevelUrgent)),
	)
}

func validatePatch(p *CompositePatch) error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&p.Description, validation.Length(0, 2000)),
	)
}

func validateTaskPatch(p *TaskPatch) error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Description, validation.NilOrNotEmpty, validation.Length(1, 2000)),
		validation.Field(&p.Level, validation.In(LevelFree, LevelOptimal, LevelUrgent)),
	)
}

// Option configures a Service
type Option func(*Service)

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger
func WithLogger(l auth.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service authorizes and applies workspace operations
type Service struct {
	store      Store
	identities auth.IdentityStore
	now        func() time.Time
	logger     auth.Logger
}

// NewService creates a service. identities resolves resource owners for
// the CanModify check when the actor is not the owner.
func NewService(store Store, identities auth.IdentityStore, opts ...Option) *Service {
	s := &Service{
		store:      store,
		identities: identities,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Service) authorize(ctx context.Context, actor *auth.User, ownerID uuid.UUID) error {
	if actor == nil {
		return auth.ErrUnauthenticated
	}
	if actor.ID == ownerID {
		return nil
	}
	owner, err := s.identities.FindByID(ctx, ownerID)
	if err != nil {
		if auth.IsNotFound(err) {
			return auth.ErrForbidden
		}
		return err
	}
	if !auth.CanModify(actor, owner) {
		return auth.ErrForbidden
	}
	return nil
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

func (s *Service) CreateComposite(ctx context.Context, actor *auth.User, msg CreateCompositeMessage) (*Composite, error) {
	if actor == nil {
		return nil, auth.ErrUnauthenticated
	}
	if err := msg.Validate(); err != nil {
		return nil, auth.ValidationError(err)
	}

	now := s.timestamp()
	c := &Composite{
		ID:          uuid.New(),
		OwnerID:     actor.ID,
		Name:        strings.TrimSpace(msg.Name),
		Description: strings.TrimSpace(msg.Description),
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
		Tasks:       []*Task{},
	}
	if err := s.store.CreateComposite(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) loadComposite(ctx context.Context, actor *auth.User, id uuid.UUID) (*Composite, error) {
	c, err := s.store.FindComposite(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, c.OwnerID); err != nil {
		return nil, err
	}
	return c, nil
}

// GetComposite returns a composite with its tasks
func (s *Service) GetComposite(ctx context.Context, actor *auth.User, id uuid.UUID) (*Composite, error) {
	return s.loadComposite(ctx, actor, id)
}

// ListComposites returns the composites of ownerID, or of the actor when
// ownerID is uuid.Nil
func (s *Service) ListComposites(ctx context.Context, actor *auth.User, ownerID uuid.UUID) ([]*Composite, error) {
	if actor == nil {
		return nil, auth.ErrUnauthenticated
	}
	if ownerID == uuid.Nil {
		ownerID = actor.ID
	}
	if err := s.authorize(ctx, actor, ownerID); err != nil {
		return nil, err
	}
	return s.store.ListComposites(ctx, ownerID)
}

func (s *Service) UpdateComposite(ctx context.Context, actor *auth.User, id uuid.UUID, patch CompositePatch) (*Composite, error) {
	if patch.Empty() {
		return nil, auth.ErrUnprocessableInput.Clone().WithMetadata(map[string]any{"reason": "no fields to update"})
	}
	if err := validatePatch(&patch); err != nil {
		return nil, auth.ValidationError(err)
	}

	c, err := s.loadComposite(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(c)
	c.UpdatedAt = s.timestamp()
	if err := s.store.UpdateComposite(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// CloseComposite marks an active composite done
func (s *Service) CloseComposite(ctx context.Context, actor *auth.User, id uuid.UUID) (*Composite, error) {
	c, err := s.loadComposite(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusActive {
		return nil, withMeta(ErrNotActive, map[string]any{
			"composite_id": id.String(),
			"status":       string(c.Status),
		})
	}

	now := s.timestamp()
	c.Status = StatusDone
	c.ClosedAt = &now
	c.UpdatedAt = now
	if err := s.store.UpdateComposite(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteComposite removes a composite and its tasks
func (s *Service) DeleteComposite(ctx context.Context, actor *auth.User, id uuid.UUID) error {
	if _, err := s.loadComposite(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store.DeleteComposite(ctx, id); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("composite deleted", "composite_id", id, "actor_id", actor.ID)
	}
	return nil
}

// CreateTask adds a task. A task inside a composite belongs to the
// composite owner and requires the composite to be active.
func (s *Service) CreateTask(ctx context.Context, actor *auth.User, msg CreateTaskMessage) (*Task, error) {
	if actor == nil {
		return nil, auth.ErrUnauthenticated
	}
	if err := msg.Validate(); err != nil {
		return nil, auth.ValidationError(err)
	}

	ownerID := actor.ID
	if msg.CompositeID != nil {
		c, err := s.loadComposite(ctx, actor, *msg.CompositeID)
		if err != nil {
			return nil, err
		}
		if c.Status != StatusActive {
			return nil, withMeta(ErrNotActive, map[string]any{
				"composite_id": c.ID.String(),
				"status":       string(c.Status),
			})
		}
		ownerID = c.OwnerID
	}

	now := s.timestamp()
	t := &Task{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		CompositeID: msg.CompositeID,
		Description: strings.TrimSpace(msg.Description),
		Level:       msg.Level,
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateTask(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) loadTask(ctx context.Context, actor *auth.User, id uuid.UUID) (*Task, error) {
	t, err := s.store.FindTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, t.OwnerID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) GetTask(ctx context.Context, actor *auth.User, id uuid.UUID) (*Task, error) {
	return s.loadTask(ctx, actor, id)
}

// ListTasks lists the tasks of a composite, or the tasks owned by
// filter.OwnerID (the actor when unset)
func (s *Service) ListTasks(ctx context.Context, actor *auth.User, filter TaskFilter) ([]*Task, error) {
	if actor == nil {
		return nil, auth.ErrUnauthenticated
	}
	if filter.CompositeID != nil {
		if _, err := s.loadComposite(ctx, actor, *filter.CompositeID); err != nil {
			return nil, err
		}
		return s.store.ListTasks(ctx, filter)
	}

	if filter.OwnerID == uuid.Nil {
		filter.OwnerID = actor.ID
	}
	if err := s.authorize(ctx, actor, filter.OwnerID); err != nil {
		return nil, err
	}
	return s.store.ListTasks(ctx, filter)
}

func (s *Service) UpdateTask(ctx context.Context, actor *auth.User, id uuid.UUID, patch TaskPatch) (*Task, error) {
	if patch.Empty() {
		return nil, auth.ErrUnprocessableInput.Clone().WithMetadata(map[string]any{"reason": "no fields to update"})
	}
	if err := validateTaskPatch(&patch); err != nil {
		return nil, auth.ValidationError(err)
	}

	t, err := s.loadTask(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(t)
	t.UpdatedAt = s.timestamp()
	if err := s.store.UpdateTask(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// CloseTask marks an active task done and stamps closed_at
func (s *Service) CloseTask(ctx context.Context, actor *auth.User, id uuid.UUID) (*Task, error) {
	t, err := s.loadTask(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if t.Status != StatusActive {
		return nil, withMeta(ErrNotActive, map[string]any{
			"task_id": id.String(),
			"status":  string(t.Status),
		})
	}

	now := s.timestamp()
	t.Status = StatusDone
	t.ClosedAt = &now
	t.UpdatedAt = now
	if err := s.store.UpdateTask(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) DeleteTask(ctx context.Context, actor *auth.User, id uuid.UUID) error {
	if _, err := s.loadTask(ctx, actor, id); err != nil {
		return err
	}
	return s.store.DeleteTask(ctx, id)
}

// UserRelations lists the composites and tasks owned by user for the
// profile view. It has the shape of auth.UserRelationsFunc.
func (s *Service) UserRelations(ctx context.Context, actor, user *auth.User) (any, any, error) {
	if user == nil {
		return nil, nil, auth.ErrUserNotFound
	}

	composites, err := s.ListComposites(ctx, actor, user.ID)
	if err != nil {
		return nil, nil, err
	}
	if composites == nil {
		composites = []*Composite{}
	}

	tasks, err := s.ListTasks(ctx, actor, TaskFilter{OwnerID: user.ID})
	if err != nil {
		return nil, nil, err
	}
	if tasks == nil {
		tasks = []*Task{}
	}
	return composites, tasks, nil
}
