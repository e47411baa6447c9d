package stm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jekaa/stm-core/stm"
)

func mustAtomically[A any](t *testing.T, s stm.STM[A]) A {
	t.Helper()
	v, err := stm.Atomically(context.Background(), s)
	require.NoError(t, err)
	return v
}

// TestTransfer_Atomicity checks a worked transfer scenario: A=100, B=0,
// atomic A-=10;B+=10 leaves A=90,B=10, and 10,000 concurrent transfers of 1
// between A and B always preserve A+B==100.
func TestTransfer_Atomicity(t *testing.T) {
	a := mustAtomically(t, stm.Make(100))
	b := mustAtomically(t, stm.Make(0))

	transfer := stm.FlatMap(stm.Get(a), func(av int) stm.STM[stm.Unit] {
		return stm.FlatMap(stm.Set(a, av-10), func(stm.Unit) stm.STM[stm.Unit] {
			return stm.FlatMap(stm.Get(b), func(bv int) stm.STM[stm.Unit] {
				return stm.Set(b, bv+10)
			})
		})
	})
	mustAtomically(t, transfer)

	assert.Equal(t, 90, mustAtomically(t, stm.Get(a)))
	assert.Equal(t, 10, mustAtomically(t, stm.Get(b)))

	one := func() stm.STM[stm.Unit] {
		return stm.FlatMap(stm.Get(a), func(av int) stm.STM[stm.Unit] {
			return stm.FlatMap(stm.Set(a, av-1), func(stm.Unit) stm.STM[stm.Unit] {
				return stm.FlatMap(stm.Get(b), func(bv int) stm.STM[stm.Unit] {
					return stm.Set(b, bv+1)
				})
			})
		})
	}

	var g errgroup.Group
	for i := 0; i < 10000; i++ {
		g.Go(func() error {
			_, err := stm.Atomically(context.Background(), one())
			return err
		})
	}
	require.NoError(t, g.Wait())

	finalA := mustAtomically(t, stm.Get(a))
	finalB := mustAtomically(t, stm.Get(b))
	assert.Equal(t, 100, finalA+finalB)
	assert.Equal(t, 100-finalB, finalA)
}

// TestRetryThenWake checks a retry-then-wake scenario: one fiber blocks on
// check(ref==1), another sets ref to 1 after a short delay.
func TestRetryThenWake(t *testing.T) {
	ref := mustAtomically(t, stm.Make(0))

	result := make(chan int, 1)
	go func() {
		v := mustAtomically(t, stm.Filter(stm.Get(ref), func(v int) bool { return v == 1 }))
		result <- v
	}()

	time.Sleep(50 * time.Millisecond)
	mustAtomically(t, stm.Set(ref, 1))

	select {
	case v := <-result:
		assert.Equal(t, 1, v)
	case <-time.After(2 * time.Second):
		t.Fatal("retry never woke up")
	}
}

// TestRetryLiveness_SurvivesIntermediateWake checks §4.4's wake-up protocol
// across more than one wake: a fiber blocked on check(ref==5) is woken by an
// intermediate write that still leaves the predicate false (ref=3) and must
// re-register and wake again on the write that finally satisfies it (ref=5),
// rather than going back to sleep on a dead channel forever.
func TestRetryLiveness_SurvivesIntermediateWake(t *testing.T) {
	ref := mustAtomically(t, stm.Make(0))

	result := make(chan int, 1)
	go func() {
		v := mustAtomically(t, stm.Filter(stm.Get(ref), func(v int) bool { return v == 5 }))
		result <- v
	}()

	time.Sleep(50 * time.Millisecond)
	mustAtomically(t, stm.Set(ref, 3)) // wakes the fiber, predicate still false
	time.Sleep(50 * time.Millisecond)
	mustAtomically(t, stm.Set(ref, 5)) // must wake it again

	select {
	case v := <-result:
		assert.Equal(t, 5, v)
	case <-time.After(2 * time.Second):
		t.Fatal("retry never woke up after an intermediate, non-satisfying write")
	}
}

// TestOrElse_RetryFallsThrough checks that retry orElse succeed(7) commits 7
// without touching any TRef on the left-hand side.
func TestOrElse_RetryFallsThrough(t *testing.T) {
	v := mustAtomically(t, stm.OrElse(stm.Retry[int](), stm.Succeed(7)))
	assert.Equal(t, 7, v)
}

// TestOrElse_FailFallsThrough checks that fail("x") orElse succeed(42)
// commits 42.
func TestOrElse_FailFallsThrough(t *testing.T) {
	v := mustAtomically(t, stm.OrElse(stm.Fail[int](errors.New("x")), stm.Succeed(42)))
	assert.Equal(t, 42, v)
}

// TestOrElse_LeftRefsNotCommitted ensures that when orElse chooses the right
// alternative, writes attempted by the left alternative never publish.
func TestOrElse_LeftRefsNotCommitted(t *testing.T) {
	ref := mustAtomically(t, stm.Make(0))

	left := stm.FlatMap(stm.Set(ref, 99), func(stm.Unit) stm.STM[int] { return stm.Retry[int]() })
	v := mustAtomically(t, stm.OrElse(left, stm.Succeed(1)))

	assert.Equal(t, 1, v)
	assert.Equal(t, 0, mustAtomically(t, stm.Get(ref)))
}

// TestInvalidationLoop runs two goroutines each incrementing one TRef 1,000
// times; the final value must be exactly 2,000 lost-update-free.
func TestInvalidationLoop(t *testing.T) {
	counter := mustAtomically(t, stm.Make(0))
	incr := stm.Update(counter, func(v int) int { return v + 1 })

	var g errgroup.Group
	for w := 0; w < 2; w++ {
		g.Go(func() error {
			for i := 0; i < 1000; i++ {
				if _, err := stm.Atomically(context.Background(), incr); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 2000, mustAtomically(t, stm.Get(counter)))
}

// TestEnsuringOnFailure checks that a finalizer's effects are rolled back
// along with the rest of a failed transaction.
func TestEnsuringOnFailure(t *testing.T) {
	counter := mustAtomically(t, stm.Make(0))

	guarded := stm.Ensuring(
		stm.Update(counter, func(v int) int { return v + 1 }),
		stm.Update(counter, func(v int) int { return v + 10 }),
	)
	txn := stm.ZipRight(guarded, stm.Fail[stm.Unit](errors.New("boom")))

	_, err := stm.Atomically(context.Background(), txn)
	require.Error(t, err)
	assert.Equal(t, 0, mustAtomically(t, stm.Get(counter)))
}

// TestFailSemantics_NeverPublishesUpdate checks that fail(e) *> update never
// publishes the update.
func TestFailSemantics_NeverPublishesUpdate(t *testing.T) {
	ref := mustAtomically(t, stm.Make(1))

	txn := stm.ZipRight(
		stm.Fail[stm.Unit](errors.New("nope")),
		stm.Set(ref, 2),
	)
	_, err := stm.Atomically(context.Background(), txn)
	require.Error(t, err)
	assert.Equal(t, 1, mustAtomically(t, stm.Get(ref)))
}

// TestStackSafety_100000FlatMaps composes 100,000 flatMaps and checks it
// commits without host-stack overflow.
func TestStackSafety_100000FlatMaps(t *testing.T) {
	const n = 100000
	s := stm.Succeed(0)
	for i := 0; i < n; i++ {
		s = stm.FlatMap(s, func(v int) stm.STM[int] { return stm.Succeed(v + 1) })
	}
	assert.Equal(t, n, mustAtomically(t, s))
}

// TestWithMaxFrames_ForcesBounces exercises the trampoline's bounce path on
// a short chain by shrinking the frame budget.
func TestWithMaxFrames_ForcesBounces(t *testing.T) {
	eng := stm.NewEngine(stm.WithMaxFrames(4), stm.WithExecutor(stm.SyncExecutor{}))

	s := stm.Succeed(0)
	for i := 0; i < 50; i++ {
		s = stm.FlatMap(s, func(v int) stm.STM[int] { return stm.Succeed(v + 1) })
	}
	v, err := stm.AtomicallyOn(context.Background(), eng, s)
	require.NoError(t, err)
	assert.Equal(t, 50, v)
}

// TestAtomically_CanceledContext checks that a retry blocked forever
// surfaces ctx's error instead of hanging.
func TestAtomically_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := stm.Atomically(ctx, stm.Retry[int]())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
