package stm

import (
	"sync"
	"sync/atomic"
)

// globalLock serializes the validate-and-publish critical section and the
// read-only final-validation instant. A single process-wide mutex, never
// split per Engine — the same discipline every STM reference implementation
// in the wider ecosystem (Haskell's Control.Concurrent.STM among them)
// relies on, and splitting it would let two engines race on the same TRef
// without mutual exclusion.
var globalLock sync.Mutex

var fiberIDCounter atomic.Uint64

// nextFiberID draws from a process-wide monotonic counter identifying one
// execution attempt, handed to the running STM via execCtx.
func nextFiberID() uint64 {
	return fiberIDCounter.Add(1)
}

// tryCommit runs n against a fresh journal, loops silently on Invalid, and
// otherwise dispatches on the outcome per the commit protocol. It returns
// once the attempt is Done (Succeed/Fail) or Suspended (Retry), along with
// the journal that produced that outcome.
func tryCommit(eng *Engine, n *node) (texit, *Journal) {
	for {
		j := newJournal()
		ctx := &execCtx{journal: j, fiberID: nextFiberID(), maxFrames: eng.maxFrames}
		t := run(ctx, n)

		status := j.analyze()
		if status == journalInvalid {
			continue // benign livelock, bounded by progress of the conflicting writer
		}

		switch t.kind {
		case texitSucceed:
			if status == journalReadWrite {
				globalLock.Lock()
				if !j.allValid() {
					globalLock.Unlock()
					continue
				}
				j.publishAll()
				globalLock.Unlock()
				eng.logger.Debug("stm: committed transaction",
					"fiber", ctx.fiberID, "writes", j.changedCount())
				completeTodos(eng, j)
				return t, j
			}
			// read-only: take the lock only to re-check validity at this instant
			globalLock.Lock()
			invalid := !j.allValid()
			globalLock.Unlock()
			if invalid {
				continue
			}
			completeTodos(eng, j)
			return t, j

		case texitFail:
			// writes are discarded by construction; still drain todos, since
			// this transaction may have registered some on an earlier attempt
			completeTodos(eng, j)
			return t, j

		default: // texitRetry
			return t, j // Suspend(journal) — completeTodos only runs on Done
		}
	}
}

// completeTodos drains and dispatches every wake-up callback belonging to a
// TRef that participated in this attempt — writers and readers alike, so a
// no-op read-only transaction still clears todos it registered earlier.
// Callbacks always go through the Engine's Executor, never run inline, per
// the sole contract this package honors for that ambiguity (see spec design
// notes on "submit to executor" vs. running todos inline on rollback).
func completeTodos(eng *Engine, j *Journal) {
	for _, e := range j.entries {
		for _, cb := range e.drainTodos() {
			eng.executor.Submit(cb)
		}
	}
}
