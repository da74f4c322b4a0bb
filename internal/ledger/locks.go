package ledger

import "sync"

// UserLocks hands out one mutex per user. Entries are dropped once no
// goroutine holds or waits on them, so the map stays bounded by the number
// of users with in-flight work.
type UserLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewUserLocks creates an empty lock table.
func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[string]*userLock)}
}

// Lock blocks until the caller holds userID's lock and returns its release func.
func (u *UserLocks) Lock(userID string) (unlock func()) {
	u.mu.Lock()
	l, ok := u.locks[userID]
	if !ok {
		l = &userLock{}
		u.locks[userID] = l
	}
	l.refs++
	u.mu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()

			u.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(u.locks, userID)
			}
			u.mu.Unlock()
		})
	}
}

// size reports how many users currently have a lock entry.
func (u *UserLocks) size() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.locks)
}
