package stm

// Make allocates a new TRef holding a, installing its initial version
// eagerly, and records an isNew entry in the journal so retry registration
// skips it (a TRef nothing outside this attempt can see yet needs no
// wake-up callback).
func Make[A any](a A) STM[*TRef[A]] {
	return leafNode[*TRef[A]](func(ctx *execCtx) texit {
		ref := &TRef[A]{id: nextTRefID()}
		v := newVersioned(a)
		ref.versioned.Store(v)
		recordNew(ctx.journal, ref, v, a)
		return texit{kind: texitSucceed, value: ref}
	})
}

// Get returns the value visible to this attempt: the journal's tentative
// value if the TRef was already touched, otherwise the value observed at
// first touch.
func Get[A any](ref *TRef[A]) STM[A] {
	return leafNode[A](func(ctx *execCtx) texit {
		e := touch(ctx.journal, ref)
		return texit{kind: texitSucceed, value: e.newValue}
	})
}

// Set overwrites the tentative value for the remainder of this attempt.
func Set[A any](ref *TRef[A], a A) STM[Unit] {
	return leafNode[Unit](func(ctx *execCtx) texit {
		e := touch(ctx.journal, ref)
		e.newValue = a
		e.changed = true
		return texit{kind: texitSucceed, value: UnitValue}
	})
}

// Update replaces the tentative value with f applied to the current one.
func Update[A any](ref *TRef[A], f func(A) A) STM[Unit] {
	return leafNode[Unit](func(ctx *execCtx) texit {
		e := touch(ctx.journal, ref)
		e.newValue = f(e.newValue)
		e.changed = true
		return texit{kind: texitSucceed, value: UnitValue}
	})
}

// Modify is Update generalized to also return a derived value. It is a free
// function, not a method on *TRef[A], because Go methods cannot introduce a
// type parameter (B here) beyond those already on the receiver.
func Modify[A, B any](ref *TRef[A], f func(A) (B, A)) STM[B] {
	return leafNode[B](func(ctx *execCtx) texit {
		e := touch(ctx.journal, ref)
		b, next := f(e.newValue)
		e.newValue = next
		e.changed = true
		return texit{kind: texitSucceed, value: b}
	})
}
