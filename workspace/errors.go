package workspace

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeCompositeNotFound = "COMPOSITE_NOT_FOUND"
	TextCodeTaskNotFound      = "TASK_NOT_FOUND"
	TextCodeNotActive         = "WORKSPACE_ITEM_NOT_ACTIVE"
)

// ErrCompositeNotFound is returned when a composite lookup misses
var ErrCompositeNotFound = goerrors.New("composite not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeCompositeNotFound).
	WithCode(http.StatusNotFound)

// ErrTaskNotFound is returned when a task lookup misses
var ErrTaskNotFound = goerrors.New("task not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeTaskNotFound).
	WithCode(http.StatusNotFound)

// ErrNotActive is returned when closing, or adding tasks to, a closed item
var ErrNotActive = goerrors.New("item is not active", goerrors.CategoryConflict).
	WithTextCode(TextCodeNotActive).
	WithCode(http.StatusConflict)

func IsNotFound(err error) bool {
	return hasTextCode(err, TextCodeCompositeNotFound) || hasTextCode(err, TextCodeTaskNotFound)
}

func IsNotActive(err error) bool {
	return hasTextCode(err, TextCodeNotActive)
}

func hasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if err != nil && goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}

func withMeta(base *goerrors.Error, meta map[string]any) error {
	return base.Clone().WithMetadata(meta)
}
