package deploy

import (
	"errors"
	"fmt"

	"github.com/hashilab/labctl/internal/credstore"
	"github.com/hashilab/labctl/internal/reconcile"
)

// FatalError marks an error that must abort the whole run: no later layer may
// execute once one is seen. Malformed manifests and credential store write
// failures are fatal regardless of wrapping.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal wraps err as a FatalError.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err must abort the run.
func IsFatal(err error) bool {
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return true
	}
	return errors.Is(err, reconcile.ErrMalformed) || errors.Is(err, credstore.ErrPersist)
}

// IsPrecondition reports whether err is a missing-input failure. The failing
// component is marked failed but the run continues and a later resume can
// retry it.
func IsPrecondition(err error) bool {
	return reconcile.IsMissingSource(err)
}

// DependencyError marks a component that never executed because something it
// depends on failed.
type DependencyError struct {
	Component  string
	Dependency string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s not executed: dependency %s failed", e.Component, e.Dependency)
}
