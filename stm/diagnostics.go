package stm

import (
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// activeTxns tracks in-flight Atomically calls purely for observability. It
// is never consulted by the commit protocol and cannot perturb any
// invariant in commit.go/retry.go — a lock-free map is the right shape for
// a hot, write-heavy, read-rarely diagnostics path.
var activeTxns = xsync.NewMapOf[uint64, time.Time]()

var diagnosticIDCounter atomic.Uint64

func trackStart() uint64 {
	id := diagnosticIDCounter.Add(1)
	activeTxns.Store(id, time.Now())
	return id
}

func trackEnd(id uint64) {
	activeTxns.Delete(id)
}

// ActiveTransactionCount returns how many Atomically calls are currently
// in flight (running or suspended on retry).
func ActiveTransactionCount() int {
	return activeTxns.Size()
}

// OldestActiveTransaction returns the start time of the longest-running
// in-flight transaction, if any.
func OldestActiveTransaction() (time.Time, bool) {
	var oldest time.Time
	found := false
	activeTxns.Range(func(_ uint64, started time.Time) bool {
		if !found || started.Before(oldest) {
			oldest = started
			found = true
		}
		return true
	})
	return oldest, found
}
