package stm_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jekaa/stm-core/stm"
)

// TestReadYourOwnWrites checks that a transaction sees its own uncommitted
// writes before it commits.
func TestReadYourOwnWrites(t *testing.T) {
	ref := mustAtomically(t, stm.Make(0))

	txn := stm.FlatMap(stm.Set(ref, 42), func(stm.Unit) stm.STM[int] {
		return stm.Get(ref)
	})
	v := mustAtomically(t, txn)
	assert.Equal(t, 42, v)
}

// TestSnapshotIsolation_NoReadSkew checks that a value returned by one
// committed Atomically call is not affected by a later commit to the same
// TRef, while the next Atomically call observes the newly committed version.
func TestSnapshotIsolation_NoReadSkew(t *testing.T) {
	ref := mustAtomically(t, stm.Make(100))

	before := mustAtomically(t, stm.Get(ref))
	mustAtomically(t, stm.Set(ref, 200))

	assert.Equal(t, 100, before)
	assert.Equal(t, 200, mustAtomically(t, stm.Get(ref)))
}

// TestWriteWriteConflict_LoserRetries checks that two concurrent writers to
// the same TRef cannot both win — the journal-invalid loser silently
// re-executes and both commits are eventually observed.
func TestWriteWriteConflict_LoserRetries(t *testing.T) {
	ref := mustAtomically(t, stm.Make(0))

	blockUntil := make(chan struct{})
	started := make(chan struct{}, 2)

	run := func(value int) <-chan error {
		done := make(chan error, 1)
		go func() {
			_, err := stm.Atomically(context.Background(), stm.FlatMap(
				stm.Succeed(stm.UnitValue),
				func(stm.Unit) stm.STM[stm.Unit] {
					started <- struct{}{}
					<-blockUntil
					return stm.Set(ref, value)
				},
			))
			done <- err
		}()
		return done
	}

	d1 := run(1)
	d2 := run(2)
	<-started
	<-started
	close(blockUntil)

	require.NoError(t, <-d1)
	require.NoError(t, <-d2)

	final := mustAtomically(t, stm.Get(ref))
	assert.True(t, final == 1 || final == 2)
}

// TestMake_FreshRefReadableImmediately checks that a TRef created within an
// attempt can be read back in that same attempt and yields its initial value.
func TestMake_FreshRefReadableImmediately(t *testing.T) {
	txn := stm.FlatMap(stm.Make(7), func(ref *stm.TRef[int]) stm.STM[int] {
		return stm.Get(ref)
	})
	assert.Equal(t, 7, mustAtomically(t, txn))
}

// TestModify_ReturnsDerivedValue checks Modify's (derived, next) contract.
func TestModify_ReturnsDerivedValue(t *testing.T) {
	ref := mustAtomically(t, stm.Make(10))

	old := mustAtomically(t, stm.Modify(ref, func(v int) (int, int) { return v, v + 5 }))
	assert.Equal(t, 10, old)
	assert.Equal(t, 15, mustAtomically(t, stm.Get(ref)))
}

// TestDie_PropagatesAsPanic checks that Die escapes Atomically as a genuine
// panic, not a Fail outcome.
func TestDie_PropagatesAsPanic(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
		d, ok := r.(stm.Defect)
		require.True(t, ok)
		assert.Equal(t, "boom", d.Message)
	}()
	_, _ = stm.Atomically(context.Background(), stm.DieMessage[int]("boom"))
	t.Fatal("expected a panic, got none")
}

// TestPartial_RecoversNonDefectPanic checks that Partial turns an ordinary
// panic into a Fail outcome surfaced as an error.
func TestPartial_RecoversNonDefectPanic(t *testing.T) {
	s := stm.Partial(func() int { panic("ordinary") })
	_, err := stm.Atomically(context.Background(), s)
	require.Error(t, err)
}

// TestDiagnostics_TracksInFlightTransactions checks the best-effort
// observability registry without perturbing the commit protocol.
func TestDiagnostics_TracksInFlightTransactions(t *testing.T) {
	before := stm.ActiveTransactionCount()
	mustAtomically(t, stm.Succeed(1))
	after := stm.ActiveTransactionCount()
	assert.Equal(t, before, after)
}

// TestWorkerPool_DrainsSubmittedWork checks the bounded executor alternative.
func TestWorkerPool_DrainsSubmittedWork(t *testing.T) {
	pool := stm.NewWorkerPool(2, 4)
	defer pool.Close()

	done := make(chan struct{})
	pool.Submit(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker pool never ran submitted task")
	}
}
