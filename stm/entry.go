package stm

// entry is the type-erased view of an Entry[A] that the journal and the
// commit/retry machinery operate on without knowing A. Every concrete
// *Entry[A] satisfies it.
type entry interface {
	refID() uint64
	isValid() bool
	isNew() bool
	isChanged() bool
	publish()
	addTodo(txnID uint64, cb func()) bool
	drainTodos() []func()
	cloneEntry() entry
}

// Entry records one TRef's participation in one execution attempt: the
// version observed at first touch, the tentative new value, and whether the
// TRef was created or merely written in this attempt.
type Entry[A any] struct {
	ref      *TRef[A]
	expected *versioned[A]
	newValue A
	isNewTRef bool
	changed  bool
}

func (e *Entry[A]) refID() uint64 { return e.ref.id }

// isValid compares expected against the TRef's current version by identity,
// never by value — a write that happens to reinstall an equal value still
// produces a distinct *versioned[A], so ABA is impossible.
func (e *Entry[A]) isValid() bool { return e.ref.versioned.Load() == e.expected }

func (e *Entry[A]) isNew() bool { return e.isNewTRef }

func (e *Entry[A]) isChanged() bool { return e.changed }

func (e *Entry[A]) publish() {
	e.ref.versioned.Store(newVersioned(e.newValue))
}

func (e *Entry[A]) addTodo(txnID uint64, cb func()) bool { return e.ref.addTodo(txnID, cb) }

func (e *Entry[A]) drainTodos() []func() { return e.ref.drainTodos() }

// cloneEntry makes an independent deep copy of this entry for orElse's
// journal snapshot — the expected-version pointer, the new value, and the
// new/changed flags all travel with the copy.
func (e *Entry[A]) cloneEntry() entry {
	cp := *e
	return &cp
}
