package ledger

import "sync"

// accountLocks hands out one mutex per account number. The map itself
// is guarded by its own mutex; per-account mutexes are never removed,
// which keeps lock identity stable for the life of the process.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *accountLocks) get(number string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[number]
	if !ok {
		m = &sync.Mutex{}
		l.locks[number] = m
	}
	return m
}

// lock acquires the mutex for one account and returns the release
// func. The release is idempotent so callers can unlock early (before
// slow post-commit work) while keeping a deferred call as the backstop.
func (l *accountLocks) lock(number string) func() {
	m := l.get(number)
	m.Lock()
	return sync.OnceFunc(m.Unlock)
}

// lockPair acquires both account mutexes in lexical order, the fixed
// global order that prevents deadlock between two symmetric transfers.
// The two numbers must differ.
func (l *accountLocks) lockPair(a, b string) func() {
	first, second := l.get(a), l.get(b)
	if b < a {
		first, second = second, first
	}
	first.Lock()
	second.Lock()
	return sync.OnceFunc(func() {
		second.Unlock()
		first.Unlock()
	})
}
