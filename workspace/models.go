// Package workspace stores composites and the tasks grouped under them.
// Every mutation is authorized with auth.CanModify against the owner.
package workspace

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Status of a composite or task
type Status string

const (
	StatusActive Status = "active"
	StatusDone   Status = "done"
)

// Level is a task priority
type Level string

const (
	LevelFree    Level = "free"
	LevelOptimal Level = "optimal"
	LevelUrgent  Level = "urgent"
)

// Composite groups tasks under a name
type Composite struct {
	bun.BaseModel `bun:"table:composites,alias:cmp"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"composite_id"`
	OwnerID       uuid.UUID  `bun:"owner_id,notnull,type:uuid" json:"user_id"`
	Name          string     `bun:"name,notnull" json:"composite_name"`
	Description   string     `bun:"description,notnull" json:"composite_description"`
	Status        Status     `bun:"status,notnull" json:"composite_status"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull" json:"updated_at"`
	ClosedAt      *time.Time `bun:"closed_at" json:"closed_at,omitempty"`
	Tasks         []*Task    `bun:"-" json:"tasks"`
}

// Task belongs to a user and optionally to one of their composites
type Task struct {
	bun.BaseModel `bun:"table:tasks,alias:tsk"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"task_id"`
	OwnerID       uuid.UUID  `bun:"owner_id,notnull,type:uuid" json:"user_id"`
	CompositeID   *uuid.UUID `bun:"composite_id,type:uuid" json:"composite_id,omitempty"`
	Description   string     `bun:"description,notnull" json:"task_description"`
	Level         Level      `bun:"level,notnull" json:"task_level"`
	Status        Status     `bun:"status,notnull" json:"task_status"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull" json:"updated_at"`
	ClosedAt      *time.Time `bun:"closed_at" json:"closed_at,omitempty"`
}

// CompositePatch holds the optional fields of a composite update
type CompositePatch struct {
	Name        *string `json:"composite_name,omitempty"`
	Description *string `json:"composite_description,omitempty"`
}

func (p CompositePatch) Empty() bool {
	return p.Name == nil && p.Description == nil
}

func (p CompositePatch) Apply(c *Composite) {
	if p.Name != nil {
		c.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		c.Description = strings.TrimSpace(*p.Description)
	}
}

// TaskPatch holds the optional fields of a task update
type TaskPatch struct {
	Description *string `json:"task_description,omitempty"`
	Level       *Level  `json:"task_level,omitempty"`
}

func (p TaskPatch) Empty() bool {
	return p.Description == nil && p.Level == nil
}

func (p TaskPatch) Apply(t *Task) {
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Level != nil {
		t.Level = *p.Level
	}
}

// TaskFilter selects tasks by composite, or by owner when CompositeID is nil
type TaskFilter struct {
	OwnerID     uuid.UUID
	CompositeID *uuid.UUID
}
