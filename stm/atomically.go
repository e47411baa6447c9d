package stm

import (
	"context"
	"errors"
)

// Atomically runs s to completion against the default Engine, blocking the
// calling goroutine until it commits, fails, or ctx is done.
func Atomically[A any](ctx context.Context, s STM[A]) (A, error) {
	return AtomicallyOn(ctx, DefaultEngine(), s)
}

// AtomicallyOn is Atomically against an explicit Engine, letting callers
// control the executor, logger, and frame budget used for this call.
func AtomicallyOn[A any](ctx context.Context, eng *Engine, s STM[A]) (A, error) {
	id := trackStart()
	defer trackEnd(id)

	t, err := runTransaction(ctx, eng, s.n)
	if err != nil {
		var zero A
		return zero, err
	}
	switch t.kind {
	case texitSucceed:
		return t.value.(A), nil
	case texitFail:
		var zero A
		return zero, t.err
	default:
		var zero A
		return zero, errors.New("stm: transaction resolved with no outcome")
	}
}

// Commit is the instance-method equivalent of Atomically(ctx, s) against
// the default Engine.
func (s STM[A]) Commit(ctx context.Context) (A, error) {
	return Atomically(ctx, s)
}

// CommitOn is the instance-method equivalent of AtomicallyOn.
func (s STM[A]) CommitOn(ctx context.Context, eng *Engine) (A, error) {
	return AtomicallyOn(ctx, eng, s)
}
