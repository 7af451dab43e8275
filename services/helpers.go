package services

import "sync"

// TournamentLocker serializes scheduling and propagation passes per
// tournament. Every recompute reads the whole match set and writes a derived
// state, so two interleaved passes on the same tournament would corrupt the
// schedule; passes on different tournaments share nothing and may run freely.
type TournamentLocker struct {
	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func NewTournamentLocker() *TournamentLocker {
	return &TournamentLocker{locks: make(map[int]*sync.Mutex)}
}

// Lock acquires the named lock for the tournament and returns the unlock
// function. Typical use: defer locker.Lock(tournamentID)().
func (l *TournamentLocker) Lock(tournamentID int) func() {
	l.mu.Lock()
	lock, ok := l.locks[tournamentID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[tournamentID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyIntPtr(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
