// Package stm implements a Software Transactional Memory runtime: composable
// memory transactions over TRef cells, validated by version identity at
// commit and automatically retried on conflict, with a cooperative retry
// primitive that suspends until an observed cell changes.
package stm

import "fmt"

// STM is a suspended, composable computation of type A. It is a value, not a
// procedure — constructing one has no effect; only Atomically (or Commit)
// runs it. STM[A] wraps an untyped node; the type parameter exists purely at
// the Go-API boundary.
type STM[A any] struct {
	n *node
}

// Unit is STM's nullary result type, used wherever a computation only
// matters for its effect.
type Unit struct{}

// UnitValue is the sole value of Unit.
var UnitValue = Unit{}

// Pair bundles the results of Zip.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Maybe is the result of AsOption: Present is false when the guarded effect
// failed (a retry is not caught and still retries).
type Maybe[A any] struct {
	Value   A
	Present bool
}

// Result is the result of OrElseEither: exactly one of Left/Right is
// populated, indicated by IsLeft.
type Result[A, B any] struct {
	Left   A
	Right  B
	IsLeft bool
}

func leafNode[A any](fn func(*execCtx) texit) STM[A] {
	return STM[A]{n: &node{kind: nodeLeaf, leaf: fn}}
}

// Succeed lifts a as a constant-outcome leaf.
func Succeed[A any](a A) STM[A] {
	return leafNode[A](func(*execCtx) texit { return texit{kind: texitSucceed, value: a} })
}

// Fail short-circuits the attempt with a typed failure; rollback discards
// any tentative writes already recorded.
func Fail[A any](err error) STM[A] {
	return leafNode[A](func(*execCtx) texit { return texit{kind: texitFail, err: err} })
}

// Retry short-circuits the attempt with TExit.Retry; all journal entries
// remain intact so the commit protocol can use them for wake-up
// registration.
func Retry[A any]() STM[A] {
	return leafNode[A](func(*execCtx) texit { return texit{kind: texitRetry} })
}

// FiberID reports the identity of the currently running attempt.
func FiberID() STM[uint64] {
	return leafNode[uint64](func(ctx *execCtx) texit { return texit{kind: texitSucceed, value: ctx.fiberID} })
}

// ExitKind tags the outcome Done lifts.
type ExitKind int

const (
	ExitSucceed ExitKind = iota
	ExitFail
	ExitRetry
)

// Exit is the reified outcome Done accepts — the public counterpart of the
// internal texit.
type Exit[A any] struct {
	Kind  ExitKind
	Value A
	Err   error
}

func SucceedExit[A any](a A) Exit[A] { return Exit[A]{Kind: ExitSucceed, Value: a} }
func FailExit[A any](err error) Exit[A] { return Exit[A]{Kind: ExitFail, Err: err} }
func RetryExit[A any]() Exit[A] { return Exit[A]{Kind: ExitRetry} }

// Done lifts an already-computed outcome into STM.
func Done[A any](e Exit[A]) STM[A] {
	switch e.Kind {
	case ExitSucceed:
		return Succeed(e.Value)
	case ExitFail:
		return Fail[A](e.Err)
	default:
		return Retry[A]()
	}
}

// Check retries (never fails) when p is false.
func Check(p bool) STM[Unit] {
	if p {
		return Succeed(UnitValue)
	}
	return Retry[Unit]()
}

// Partial runs a thunk that may panic and turns a non-Defect panic into a
// Fail outcome; a Defect panic (from Die/DieMessage) still propagates as a
// genuine panic, since defects are never recoverable from inside STM.
func Partial[A any](thunk func() A) (result STM[A]) {
	return leafNode[A](func(*execCtx) (t texit) {
		defer func() {
			if r := recover(); r != nil {
				if d, ok := r.(Defect); ok {
					panic(d)
				}
				t = texit{kind: texitFail, err: toError(r)}
			}
		}()
		return texit{kind: texitSucceed, value: thunk()}
	})
}

// FromTry lifts a Go-idiomatic (value, error) thunk directly, without any
// panic recovery.
func FromTry[A any](thunk func() (A, error)) STM[A] {
	return leafNode[A](func(*execCtx) texit {
		a, err := thunk()
		if err != nil {
			return texit{kind: texitFail, err: err}
		}
		return texit{kind: texitSucceed, value: a}
	})
}

// FromEither lifts a (value, error) pair — Go's natural Either — directly.
func FromEither[A any](a A, err error) STM[A] {
	if err != nil {
		return Fail[A](err)
	}
	return Succeed(a)
}

// Die raises a non-recoverable defect carrying an arbitrary value.
func Die[A any](v any) STM[A] {
	return leafNode[A](func(*execCtx) texit { panic(Defect{Value: v}) })
}

// DieMessage raises a non-recoverable defect carrying a message.
func DieMessage[A any](msg string) STM[A] {
	return leafNode[A](func(*execCtx) texit { panic(Defect{Message: msg}) })
}

// Suspend defers construction of the wrapped effect until it is actually
// run — useful for self-referential or conditionally-built transactions.
func Suspend[A any](thunk func() STM[A]) STM[A] {
	return STM[A]{n: &node{kind: nodeSuspend, suspendThunk: func() *node { return thunk().n }}}
}

// FlatMap sequences s into f; f only runs if s succeeds.
func FlatMap[A, B any](s STM[A], f func(A) STM[B]) STM[B] {
	return STM[B]{n: &node{kind: nodeFlatMap, src: s.n, k: func(v any) *node { return f(v.(A)).n }}}
}

// Map transforms a successful result; failures and retries pass through.
func Map[A, B any](s STM[A], f func(A) B) STM[B] {
	return FlatMap(s, func(a A) STM[B] { return Succeed(f(a)) })
}

// Flatten collapses a nested STM.
func Flatten[A any](s STM[STM[A]]) STM[A] {
	return FlatMap(s, func(inner STM[A]) STM[A] { return inner })
}

// Zip runs a then b, pairing their results; b only runs if a succeeds.
func Zip[A, B any](a STM[A], b STM[B]) STM[Pair[A, B]] {
	return FlatMap(a, func(av A) STM[Pair[A, B]] {
		return Map(b, func(bv B) Pair[A, B] { return Pair[A, B]{First: av, Second: bv} })
	})
}

// ZipLeft runs a then b, keeping a's result.
func ZipLeft[A, B any](a STM[A], b STM[B]) STM[A] {
	return FlatMap(a, func(av A) STM[A] { return Map(b, func(B) A { return av }) })
}

// ZipRight runs a then b, keeping b's result.
func ZipRight[A, B any](a STM[A], b STM[B]) STM[B] {
	return FlatMap(a, func(A) STM[B] { return b })
}

// ZipWith runs a then b, combining their results with f.
func ZipWith[A, B, C any](a STM[A], b STM[B], f func(A, B) C) STM[C] {
	return FlatMap(a, func(av A) STM[C] {
		return Map(b, func(bv B) C { return f(av, bv) })
	})
}

// As replaces a successful result with a constant.
func As[A, B any](s STM[A], b B) STM[B] {
	return Map(s, func(A) B { return b })
}

// ToUnit discards a successful result.
func ToUnit[A any](s STM[A]) STM[Unit] {
	return As(s, UnitValue)
}

// Ignore turns any outcome (success or failure) into a successful Unit;
// retries still retry.
func Ignore[A any](s STM[A]) STM[Unit] {
	return Fold(s, func(error) Unit { return UnitValue }, func(A) Unit { return UnitValue })
}

// MapError transforms a failure's error value.
func MapError[A any](s STM[A], f func(error) error) STM[A] {
	return FoldM(s, func(e error) STM[A] { return Fail[A](f(e)) }, func(a A) STM[A] { return Succeed(a) })
}

// Fold maps both outcome branches to a plain value; Retry passes through
// untouched (only orElse intercepts it).
func Fold[A, B any](s STM[A], onFail func(error) B, onSucceed func(A) B) STM[B] {
	return STM[B]{n: &node{
		kind: nodeFold,
		src:  s.n,
		onFail: func(e error) *node {
			return Succeed(onFail(e)).n
		},
		onSucceed: func(v any) *node {
			return Succeed(onSucceed(v.(A))).n
		},
	}}
}

// FoldM is Fold generalized to STM-valued handlers.
func FoldM[A, B any](s STM[A], onFail func(error) STM[B], onSucceed func(A) STM[B]) STM[B] {
	return STM[B]{n: &node{
		kind: nodeFold,
		src:  s.n,
		onFail: func(e error) *node {
			return onFail(e).n
		},
		onSucceed: func(v any) *node {
			return onSucceed(v.(A)).n
		},
	}}
}

// AsOption turns failure into Maybe's zero value instead of propagating it;
// retry still retries.
func AsOption[A any](s STM[A]) STM[Maybe[A]] {
	return Fold(s,
		func(error) Maybe[A] { return Maybe[A]{} },
		func(a A) Maybe[A] { return Maybe[A]{Value: a, Present: true} },
	)
}

// Either is the result of AsEither: a failed s surfaces as a populated Err
// instead of propagating; retry still retries.
type Either[A any] struct {
	Err   error
	Value A
	IsErr bool
}

// AsEither reifies s's failure channel into the success channel, the same
// way AsOption reifies it into Maybe — useful when a caller wants to inspect
// an error value without it aborting the surrounding composition.
func AsEither[A any](s STM[A]) STM[Either[A]] {
	return Fold(s,
		func(e error) Either[A] { return Either[A]{Err: e, IsErr: true} },
		func(a A) Either[A] { return Either[A]{Value: a} },
	)
}

// AsError is AsEither's dual: given an already-produced error value, raise
// it as a Fail outcome if non-nil, otherwise succeed with Unit. Useful at
// the boundary where some earlier step in the composition computed an error
// value but didn't have occasion to fail on it directly.
func AsError(s STM[error]) STM[Unit] {
	return FlatMap(s, func(err error) STM[Unit] {
		if err != nil {
			return Fail[Unit](err)
		}
		return Succeed(UnitValue)
	})
}

// Filter retries (does not fail) when p is false.
func Filter[A any](s STM[A], p func(A) bool) STM[A] {
	return FlatMap(s, func(a A) STM[A] {
		if p(a) {
			return Succeed(a)
		}
		return Retry[A]()
	})
}

// Collect is Filter generalized to a partial mapping.
func Collect[A, B any](s STM[A], pf func(A) (B, bool)) STM[B] {
	return FlatMap(s, func(a A) STM[B] {
		if b, ok := pf(a); ok {
			return Succeed(b)
		}
		return Retry[B]()
	})
}

// CollectM is Collect generalized to an STM-valued partial mapping.
func CollectM[A, B any](s STM[A], pf func(A) (STM[B], bool)) STM[B] {
	return FlatMap(s, func(a A) STM[B] {
		if eff, ok := pf(a); ok {
			return eff
		}
		return Retry[B]()
	})
}

// OrElse snapshots the journal, runs s, and — if s fails or retries —
// restores the journal and runs that instead. A failed or retried s can
// never be observed to have touched any TRef once that is chosen.
func OrElse[A any](s STM[A], that STM[A]) STM[A] {
	return STM[A]{n: &node{kind: nodeOrElse, src: s.n, alt: that.n}}
}

// Fallback is OrElse under the name some STM libraries expose for the same
// combinator — kept as a distinct export rather than folded away, since it
// reads better at call sites built around "try this, then fall back to that"
// rather than "this, or else that".
func Fallback[A any](s STM[A], that STM[A]) STM[A] {
	return OrElse(s, that)
}

// OrElseEither is OrElse tagging which side produced the result.
func OrElseEither[A, B any](s STM[A], that STM[B]) STM[Result[A, B]] {
	left := Map(s, func(a A) Result[A, B] { return Result[A, B]{Left: a, IsLeft: true} })
	right := Map(that, func(b B) Result[A, B] { return Result[A, B]{Right: b} })
	return OrElse(left, right)
}

// Ensuring runs finalizer on both the success and failure paths of s (not on
// retry, since a retried attempt is abandoned and re-run from scratch). If
// the whole transaction is ultimately rolled back, the finalizer's writes
// are rolled back with it.
func Ensuring[A any](s STM[A], finalizer STM[Unit]) STM[A] {
	return STM[A]{n: &node{kind: nodeEnsuring, src: s.n, finalizer: finalizer.n}}
}

// CollectAll sequences a slice of effects into an effect of their results,
// left to right; the whole sequence fails or retries as soon as one element
// does.
func CollectAll[A any](items []STM[A]) STM[[]A] {
	// Starts from a zero-capacity slice, not a preallocated one: the literal
	// here is captured once by Succeed and handed back verbatim on every
	// execution of this chain (every attempt, every retry, every concurrent
	// commit of the same composed value). A zero-capacity starting slice
	// guarantees the first append always allocates a fresh backing array,
	// so those independent executions never alias storage; preallocating
	// capacity up front would make them share one.
	acc := Succeed([]A{})
	for _, item := range items {
		item := item
		acc = FlatMap(acc, func(xs []A) STM[[]A] {
			return Map(item, func(x A) []A { return append(xs, x) })
		})
	}
	return acc
}

// Foreach maps f over items and sequences the results.
func Foreach[A, B any](items []A, f func(A) STM[B]) STM[[]B] {
	effects := make([]STM[B], len(items))
	for i, it := range items {
		effects[i] = f(it)
	}
	return CollectAll(effects)
}

// ForeachDiscard is Foreach with the results discarded.
func ForeachDiscard[A any](items []A, f func(A) STM[Unit]) STM[Unit] {
	return ToUnit(Foreach(items, f))
}

func toError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return panicValueError{r}
}

type panicValueError struct{ v any }

func (e panicValueError) Error() string { return fmt.Sprintf("stm: recovered panic: %v", e.v) }
