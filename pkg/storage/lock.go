package storage

import (
	"sync"

	"github.com/netcache-project/netcache/pkg/metrics"
)

// blobLockEntry is one process-wide reader/writer lock keyed by blob
// identity (spec.md §3 "Blob lock"), pooled so that lock objects are
// reused while referenced and freed once the last holder releases.
//
// Identity, not coordinates, is the key: a blob being created has no
// coordinates yet, and a blob's coordinates change across rotation while
// its identity stays stable (types.Identity's doc comment), so identity
// is the only thing every accessor — including the two racing creators
// spec.md §4.C "Failure semantics" describes — can agree on up front.
type blobLockEntry struct {
	mu   sync.RWMutex
	refs int
}

// lockPool creates blob locks on first use and returns them to a
// freelist (here: deletes the map entry) once nothing references them.
type lockPool struct {
	mu    sync.Mutex
	locks map[string]*blobLockEntry
}

func newLockPool() *lockPool {
	return &lockPool{locks: make(map[string]*blobLockEntry)}
}

// acquire returns the lock for key, retained for the caller, and locks it
// in read or write mode depending on write. The caller must call release
// exactly once per acquire, regardless of write mode.
func (p *lockPool) acquire(key string, write bool) *blobLockEntry {
	mode := "read"
	if write {
		mode = "write"
	}

	p.mu.Lock()
	e, ok := p.locks[key]
	if !ok {
		e = &blobLockEntry{}
		p.locks[key] = e
	}
	e.refs++
	p.mu.Unlock()

	var tryLocked bool
	if write {
		tryLocked = e.mu.TryLock()
	} else {
		tryLocked = e.mu.TryRLock()
	}
	if !tryLocked {
		metrics.BlobLockContentionTotal.WithLabelValues(mode).Inc()
		timer := metrics.NewTimer()
		if write {
			e.mu.Lock()
		} else {
			e.mu.RLock()
		}
		timer.ObserveDurationVec(metrics.BlobLockWaitDuration, mode)
	}
	return e
}

// tryAcquireWrite is a non-blocking write acquisition used by GC (spec.md
// §4.C "Garbage collection" step 2: "if contended, skip"). It reports
// whether the lock was obtained.
func (p *lockPool) tryAcquireWrite(key string) (*blobLockEntry, bool) {
	p.mu.Lock()
	e, ok := p.locks[key]
	if !ok {
		e = &blobLockEntry{}
		p.locks[key] = e
	}
	e.refs++
	p.mu.Unlock()

	if !e.mu.TryLock() {
		p.release(key, e, true)
		return nil, false
	}
	return e, true
}

func (p *lockPool) release(key string, e *blobLockEntry, write bool) {
	if write {
		e.mu.Unlock()
	} else {
		e.mu.RUnlock()
	}
	p.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(p.locks, key)
	}
	p.mu.Unlock()
}
