package memory

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// TurnLockRepository hands out one lock per session id so concurrent turns
// against the same session cannot interleave their read-modify-write of the
// persisted state. Idle entries expire to keep the registry from growing with
// dead sessions; a held lock is stored without an expiration, so a turn can
// run arbitrarily long without its lock being purged underneath it.
type TurnLockRepository struct {
	mu    sync.Mutex
	locks *cache.Cache
}

func NewTurnLockRepository() *TurnLockRepository {
	// Idle expiration of 1 hour, purging expired items every 10 minutes
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &TurnLockRepository{
		locks: c,
	}
}

// TryAcquire takes the turn lock for sessionID, creating it on first use.
// It returns false when another turn holds the lock. On success the entry is
// pinned until the returned release func runs, which unlocks and re-arms the
// idle expiration.
func (r *TurnLockRepository) TryAcquire(sessionID string) (release func(), ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lock *sync.Mutex
	if x, found := r.locks.Get(sessionID); found {
		lock = x.(*sync.Mutex)
	} else {
		lock = &sync.Mutex{}
	}

	if !lock.TryLock() {
		return nil, false
	}

	r.locks.Set(sessionID, lock, cache.NoExpiration)

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		lock.Unlock()
		if x, found := r.locks.Get(sessionID); found && x.(*sync.Mutex) == lock {
			r.locks.Set(sessionID, lock, cache.DefaultExpiration)
		}
	}, true
}

// Release drops the lock entry once the session is deleted.
func (r *TurnLockRepository) Release(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locks.Delete(sessionID)
}
