package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than limit goroutines are running.
func GoroutineCountCheck(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("%d goroutines running, limit %d", n, limit)
		}
		return nil
	}
}

// StateCheck fails while current() differs from want.
func StateCheck[T comparable](current func() T, want T) CheckFunc {
	return func(context.Context) error {
		if got := current(); got != want {
			return errors.Errorf("state is %v, want %v", got, want)
		}
		return nil
	}
}
