package stm

// Journal maps TRef identity to Entry for one execution attempt. An attempt
// owns its journal exclusively — journals are never shared between
// concurrent attempts, so no synchronization is needed on the map itself.
type Journal struct {
	entries map[uint64]entry
}

func newJournal() *Journal {
	return &Journal{entries: make(map[uint64]entry)}
}

func touch[A any](j *Journal, ref *TRef[A]) *Entry[A] {
	if existing, ok := j.entries[ref.id]; ok {
		return existing.(*Entry[A])
	}
	v := ref.versioned.Load()
	e := &Entry[A]{ref: ref, expected: v, newValue: v.value}
	j.entries[ref.id] = e
	return e
}

func recordNew[A any](j *Journal, ref *TRef[A], v *versioned[A], initial A) {
	j.entries[ref.id] = &Entry[A]{ref: ref, expected: v, newValue: initial, isNewTRef: true}
}

// analyze classifies the journal in a single pass: Invalid beats
// ReadWrite beats ReadOnly.
func (j *Journal) analyze() journalStatus {
	status := journalReadOnly
	for _, e := range j.entries {
		if !e.isValid() {
			return journalInvalid
		}
		if e.isChanged() {
			status = journalReadWrite
		}
	}
	return status
}

func (j *Journal) allValid() bool {
	for _, e := range j.entries {
		if !e.isValid() {
			return false
		}
	}
	return true
}

func (j *Journal) publishAll() {
	for _, e := range j.entries {
		if e.isChanged() {
			e.publish()
		}
	}
}

func (j *Journal) changedCount() int {
	n := 0
	for _, e := range j.entries {
		if e.isChanged() {
			n++
		}
	}
	return n
}

// snapshot returns an independent deep copy of every entry, used by orElse
// to remember the journal state before running its left alternative.
func (j *Journal) snapshot() map[uint64]entry {
	cp := make(map[uint64]entry, len(j.entries))
	for id, e := range j.entries {
		cp[id] = e.cloneEntry()
	}
	return cp
}

// restore replaces the journal's entries with a previously taken snapshot —
// restoration yields a journal semantically identical to the pre-alternative
// point, so a failed or retried left-hand branch of orElse can never be
// observed to have touched any TRef.
func (j *Journal) restore(snap map[uint64]entry) {
	j.entries = snap
}
