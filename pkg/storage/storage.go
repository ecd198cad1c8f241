package storage

import (
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/netcache-project/netcache/pkg/log"
	"github.com/netcache-project/netcache/pkg/metrics"
	"github.com/netcache-project/netcache/pkg/tree"
	"github.com/netcache-project/netcache/pkg/types"
	"github.com/rs/zerolog"
)

// Config carries the registry keys spec.md §6 "Configuration keys" names.
type Config struct {
	Path string
	Name string

	ReadOnly bool

	DefaultTTL time.Duration
	MaxTTL     time.Duration

	TimestampOnRead bool
	DropIfDirty     bool

	MaxBlobSize int64

	RotatePeriod time.Duration

	GCInterval   time.Duration
	GCBatchSize  int
	GCBatchSleep time.Duration
}

func (c Config) validate() error {
	if c.Path == "" || c.Name == "" {
		return newError("Open", WrongFileName, nil)
	}
	return nil
}

func (c Config) rotatePeriod() time.Duration {
	if c.RotatePeriod > 0 {
		return c.RotatePeriod
	}
	return c.DefaultTTL / 10
}

// Storage is NetCache's blob storage engine (spec.md §4.C): sharded,
// rotating parts of bbolt databases fronted by a coordinate cache.
type Storage struct {
	cfg Config
	log zerolog.Logger

	index *indexDB
	guard *guardFile

	partsMu sync.RWMutex
	parts   []*part // ascending part id; parts[len-1] is current
	nextPID uint32

	cache *tree.ConcurrentMap[string, types.Coordinates]
	locks *lockPool

	// cachingFloor is the smallest part id not yet fully scanned by the
	// initial caching pass; lookups for that id or lower fall back to an
	// on-disk scan (spec.md §4.C "Initial caching"). -1 once complete.
	cachingFloor atomic.Int64

	blocked     atomic.Bool
	outstanding atomic.Int64

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup

	lastDeadTime atomic.Int64 // unix nanos, GC low-water mark
}

// Open validates the directory, loads or (re)creates the index, and
// starts the background caching and GC goroutines.
func Open(cfg Config) (*Storage, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = 30 * time.Second
	}
	if cfg.GCBatchSize <= 0 {
		cfg.GCBatchSize = 256
	}
	slog := log.WithComponent("storage").With().Str("name", cfg.Name).Logger()

	if err := os.MkdirAll(cfg.Path, 0700); err != nil {
		return nil, newError("Open", IOError, err)
	}

	guard, dirty, err := openGuard(cfg.Path, cfg.Name)
	if err != nil {
		return nil, err
	}

	s := &Storage{
		cfg:    cfg,
		log:    slog,
		guard:  guard,
		cache:  tree.New[string, types.Coordinates](),
		locks:  newLockPool(),
		stopCh: make(chan struct{}),
	}

	dropAll := dirty && cfg.DropIfDirty
	if dirty && !cfg.DropIfDirty {
		slog.Warn().Msg("guard file present at startup: previous shutdown was unclean")
	}

	idx, err := openIndex(cfg.Path, cfg.Name)
	if err != nil {
		return nil, err
	}
	s.index = idx

	entries, err := idx.list()
	if err != nil {
		return nil, err
	}

	if !dropAll {
		for _, e := range entries {
			if _, statErr := os.Stat(e.MetaPath); statErr != nil {
				dropAll = true
				break
			}
			if _, statErr := os.Stat(e.DataPath); statErr != nil {
				dropAll = true
				break
			}
		}
	}

	if dropAll {
		slog.Warn().Msg("dropping all storage state")
		for _, e := range entries {
			os.Remove(e.MetaPath)
			os.Remove(e.DataPath)
			idx.remove(e.PartID)
		}
		entries = nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].PartID < entries[j].PartID })

	if !cfg.ReadOnly {
		for _, e := range entries[:max(0, len(entries)-1)] {
			p, err := openPart(cfg.Path, cfg.Name, e.PartID, e.MinBlobID, timeOf(e.CreatedAt), true)
			if err != nil {
				return nil, err
			}
			s.parts = append(s.parts, p)
		}
		if len(entries) > 0 {
			last := entries[len(entries)-1]
			p, err := openPart(cfg.Path, cfg.Name, last.PartID, last.MinBlobID, timeOf(last.CreatedAt), false)
			if err != nil {
				return nil, err
			}
			s.parts = append(s.parts, p)
			s.nextPID = last.PartID + 1
		}
	} else {
		for _, e := range entries {
			p, err := openPart(cfg.Path, cfg.Name, e.PartID, e.MinBlobID, timeOf(e.CreatedAt), true)
			if err != nil {
				return nil, err
			}
			s.parts = append(s.parts, p)
		}
		if len(entries) > 0 {
			s.nextPID = entries[len(entries)-1].PartID + 1
		}
	}

	if len(s.parts) == 0 && !cfg.ReadOnly {
		p, err := s.createPart(time.Now())
		if err != nil {
			return nil, err
		}
		s.parts = append(s.parts, p)
		s.nextPID = p.id + 1
	}

	if !cfg.ReadOnly {
		if err := guard.create(); err != nil {
			return nil, err
		}
	}

	if len(s.parts) == 0 {
		s.cachingFloor.Store(-1)
	} else {
		s.cachingFloor.Store(int64(s.parts[0].id))
		s.wg.Add(1)
		go s.runInitialCaching()
	}

	s.wg.Add(1)
	go s.runBackgroundLoop()

	return s, nil
}

// createPart opens and registers a brand new current part. The caller
// must hold partsMu for writing (or, during Open, run single-threaded
// before any background goroutine starts).
func (s *Storage) createPart(now time.Time) (*part, error) {
	id := s.nextPID
	var minID uint64
	if len(s.parts) > 0 {
		minID = s.parts[len(s.parts)-1].minBlobID + 1_000_000_000
	}
	p, err := openPart(s.cfg.Path, s.cfg.Name, id, minID, now, false)
	if err != nil {
		return nil, err
	}
	if err := s.index.put(entryFromPart(p)); err != nil {
		p.remove()
		return nil, err
	}
	s.nextPID = id + 1
	return p, nil
}

// Close stops background work and closes every open part and the index.
func (s *Storage) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()

	s.partsMu.Lock()
	defer s.partsMu.Unlock()
	var firstErr error
	for _, p := range s.parts {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.index.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if !s.cfg.ReadOnly {
		if err := s.guard.release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Heartbeat drives the coordinate cache's deferred node reclamation
// (spec.md §4.C "heartbeat(): periodic tick; drives reclaimer and GC
// bookkeeping").
func (s *Storage) Heartbeat() {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TreeHeartbeatDuration)
	s.cache.Heartbeat()
}

// Block prevents new lock acquisitions (spec.md §4.C "admission control
// for maintenance operations").
func (s *Storage) Block() { s.blocked.Store(true) }

// Unblock resumes accepting new lock acquisitions.
func (s *Storage) Unblock() { s.blocked.Store(false) }

// CanDoExclusive reports whether every previously granted lock has been
// released, i.e. it is safe to Reinitialize.
func (s *Storage) CanDoExclusive() bool {
	return s.blocked.Load() && s.outstanding.Load() == 0
}

// Reinitialize clears all on-disk state. Valid only once CanDoExclusive
// reports true.
func (s *Storage) Reinitialize() error {
	if !s.CanDoExclusive() {
		return newError("Reinitialize", WrongBlock, nil)
	}
	s.partsMu.Lock()
	defer s.partsMu.Unlock()

	for _, p := range s.parts {
		p.remove()
		s.index.remove(p.id)
	}
	s.parts = nil
	s.cache.Clear()

	if !s.cfg.ReadOnly {
		p, err := s.createPart(time.Now())
		if err != nil {
			return err
		}
		s.parts = append(s.parts, p)
	}
	s.cachingFloor.Store(-1)
	return nil
}

func (s *Storage) currentPart() *part {
	s.partsMu.RLock()
	defer s.partsMu.RUnlock()
	if len(s.parts) == 0 {
		return nil
	}
	return s.parts[len(s.parts)-1]
}

// CacheStats reports the coordinate cache's current tree height and live
// value/node counts, for metrics reporting.
func (s *Storage) CacheStats() (height uint8, values int, nodes int) {
	return s.cache.TreeHeight(), s.cache.CountValues(), s.cache.CountNodes()
}

// PartStats reports the number of open parts and the blob count of each,
// keyed by part id, for metrics reporting.
func (s *Storage) PartStats() (count int, blobsByPart map[uint32]int) {
	s.partsMu.RLock()
	parts := append([]*part(nil), s.parts...)
	s.partsMu.RUnlock()

	blobsByPart = make(map[uint32]int, len(parts))
	for _, p := range parts {
		n, err := p.blobCount()
		if err != nil {
			continue
		}
		blobsByPart[p.id] = n
	}
	return len(parts), blobsByPart
}

func (s *Storage) partByID(id uint32) *part {
	s.partsMu.RLock()
	defer s.partsMu.RUnlock()
	for _, p := range s.parts {
		if p.id == id {
			return p
		}
	}
	return nil
}

// IsBlobFamilyExists reports whether any version of (key, subkey) exists.
// The cache only maps a fully-qualified identity to coordinates, so this
// always consults the parts directly rather than the cache.
func (s *Storage) IsBlobFamilyExists(key, subkey string) bool {
	s.partsMu.RLock()
	parts := append([]*part(nil), s.parts...)
	s.partsMu.RUnlock()
	for i := len(parts) - 1; i >= 0; i-- {
		if exists, _ := parts[i].familyExists(key, subkey); exists {
			return true
		}
	}
	return false
}

// lookupCoordinates resolves an identity to coordinates, consulting the
// cache first and falling back to an on-disk scan of parts not yet
// covered by initial caching (spec.md §4.C "Coordinate caching").
func (s *Storage) lookupCoordinates(id types.Identity) (types.Coordinates, bool) {
	if c, ok := s.cache.Get(cacheKey(id)); ok {
		return c, true
	}
	floor := s.cachingFloor.Load()
	if floor < 0 {
		return types.Coordinates{}, false
	}
	s.partsMu.RLock()
	parts := append([]*part(nil), s.parts...)
	s.partsMu.RUnlock()
	for i := len(parts) - 1; i >= 0; i-- {
		if uint32(parts[i].id) > uint32(floor) {
			continue
		}
		if blobID, ok := parts[i].findByIdentity(id); ok {
			return types.Coordinates{PartID: types.PartID(parts[i].id), BlobID: types.BlobID(blobID)}, true
		}
	}
	return types.Coordinates{}, false
}

// runInitialCaching scans parts newest-to-oldest, populating the
// coordinate cache (spec.md §4.C "Initial caching").
func (s *Storage) runInitialCaching() {
	defer s.wg.Done()
	s.partsMu.RLock()
	parts := append([]*part(nil), s.parts...)
	s.partsMu.RUnlock()

	now := time.Now()
	for i := len(parts) - 1; i >= 0; i-- {
		p := parts[i]
		select {
		case <-s.stopCh:
			return
		default:
		}
		p.forEachBlob(func(rec blobRecord, life lifecycleRecord) error {
			if life.DeadTime != 0 && timeOf(life.DeadTime).Before(now) {
				return nil
			}
			id := types.Identity{Key: rec.Key, SubKey: rec.SubKey, Version: rec.Version}
			s.cache.Put(cacheKey(id), types.Coordinates{PartID: types.PartID(p.id), BlobID: types.BlobID(rec.ID)})
			return nil
		})
		s.cachingFloor.Store(int64(p.id))
	}
	s.cachingFloor.Store(-1)
	s.log.Info().Msg("initial caching complete")
}

func (s *Storage) runBackgroundLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runGCPass()
			s.checkRotation()
			s.reportGaugeMetrics()
		}
	}
}

// reportGaugeMetrics samples state that isn't convenient to update inline
// on every mutation (tree shape, part/blob counts) and pushes it to the
// package-level prometheus gauges.
func (s *Storage) reportGaugeMetrics() {
	height, values, nodes := s.CacheStats()
	metrics.TreeHeight.Set(float64(height))
	metrics.TreeValuesTotal.Set(float64(values))
	metrics.TreeNodesTotal.Set(float64(nodes))

	count, blobsByPart := s.PartStats()
	metrics.PartsTotal.Set(float64(count))
	for part, n := range blobsByPart {
		metrics.BlobsTotal.WithLabelValues(strconv.FormatUint(uint64(part), 10)).Set(float64(n))
	}
}

// BlobLockHolder represents an acquired per-blob lock (spec.md §4.C
// "Blob lock holder").
type BlobLockHolder struct {
	s *Storage

	id     types.Identity
	exists bool

	part      *part
	blobID    uint64
	lockKey   string
	lockEntry *blobLockEntry
	write     bool

	life lifecycleRecord
	blob *Blob // set once GetBlob is called in write mode

	deleteOnRelease bool
	released        bool
}

// GetBlobAccess acquires a blob lock (spec.md §4.C "Public contract").
func (s *Storage) GetBlobAccess(key, subkey string, version int32, password string, kind types.AccessKind) (h *BlobLockHolder, err error) {
	mode := "read"
	if kind == types.AccessCreate {
		mode = "write"
	}
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDurationVec(metrics.BlobAccessDuration, mode)
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.BlobAccessTotal.WithLabelValues(mode, result).Inc()
	}()

	if s.blocked.Load() {
		return nil, newError("GetBlobAccess", WrongBlock, nil)
	}
	id := types.Identity{Key: key, SubKey: subkey, Version: version}
	write := kind == types.AccessCreate

	coords, found := s.lookupCoordinates(id)

	if !found && kind == types.AccessRead {
		return nil, ErrBlobNotFound
	}

	var (
		p      *part
		blobID uint64
		life   lifecycleRecord
	)

	if found {
		p = s.partByID(uint32(coords.PartID))
		if p == nil {
			return nil, newError("GetBlobAccess", CorruptedDB, nil)
		}
		blobID = uint64(coords.BlobID)
	} else {
		if s.cfg.ReadOnly {
			return nil, newError("GetBlobAccess", ReadOnlyAccess, nil)
		}
		p = s.currentPart()
		if p == nil {
			return nil, newError("GetBlobAccess", IOError, nil)
		}
	}

	lockKey := cacheKey(id)
	s.outstanding.Add(1)
	entry := s.locks.acquire(lockKey, write)
	release := func() {
		s.locks.release(lockKey, entry, write)
		s.outstanding.Add(-1)
	}

	if !found {
		// Acquiring the identity lock may have blocked behind another
		// creator for the same identity; once granted, re-check before
		// inserting so the loser of that race falls into the
		// already-exists branch instead of writing a duplicate row
		// (spec.md §4.C "Failure semantics").
		if c2, ok := s.lookupCoordinates(id); ok {
			coords, found = c2, true
			p = s.partByID(uint32(coords.PartID))
			if p == nil {
				release()
				return nil, newError("GetBlobAccess", CorruptedDB, nil)
			}
			blobID = uint64(coords.BlobID)
		}
	}

	if found {
		rec, l, ok, err := p.getBlob(blobID)
		if err != nil || !ok {
			release()
			return nil, newError("GetBlobAccess", CorruptedDB, err)
		}
		if password != "" && l.Password != "" && password != l.Password {
			release()
			return nil, newError("GetBlobAccess", ReadOnlyAccess, nil)
		}
		_ = rec
		life = l
		if s.cfg.TimestampOnRead && !write {
			life.AccessedAt = time.Now().UnixNano()
			p.updateLifecycle(blobID, life)
		}
	} else {
		now := time.Now()
		ttl := s.cfg.DefaultTTL
		life = lifecycleRecord{
			AccessedAt: now.UnixNano(),
			DeadTime:   now.Add(ttl).UnixNano(),
			TTLNanos:   int64(ttl),
			Password:   password,
		}
		newID, err := p.insertBlob(id, life)
		if err != nil {
			release()
			return nil, err
		}
		blobID = newID
		life.ID = newID
		s.cache.Put(cacheKey(id), types.Coordinates{PartID: types.PartID(p.id), BlobID: types.BlobID(newID)})
	}

	return &BlobLockHolder{
		s: s, id: id, exists: found,
		part: p, blobID: blobID, lockKey: lockKey, lockEntry: entry, write: write,
		life: life,
	}, nil
}

func (h *BlobLockHolder) IsBlobExists() bool    { return h.exists }
func (h *BlobLockHolder) GetBlobKey() string    { return h.id.Key }
func (h *BlobLockHolder) GetBlobSubKey() string { return h.id.SubKey }
func (h *BlobLockHolder) GetBlobVersion() int32 { return h.id.Version }
func (h *BlobLockHolder) GetBlobSize() int64    { return h.life.Size }

func (h *BlobLockHolder) IsBlobExpired() bool {
	if h.life.DeadTime == 0 {
		return false
	}
	return !time.Now().Before(timeOf(h.life.DeadTime))
}

// GetBlob returns a streaming accessor over the blob's bytes, positioned
// for reading when the blob already existed or for writing when this
// access created it.
func (h *BlobLockHolder) GetBlob() (*Blob, error) {
	if !h.write {
		ids, err := h.part.chunkIDs(h.blobID)
		if err != nil {
			return nil, err
		}
		return newReadBlob(h.part, h.blobID, ids), nil
	}
	oldChunks, err := h.part.chunkIDs(h.blobID)
	if err != nil {
		return nil, err
	}
	h.blob = newWriteBlob(h.part, h.blobID, h.s.cfg.MaxBlobSize, oldChunks)
	return h.blob, nil
}

// SetBlobTTL overrides the blob's expiration.
func (h *BlobLockHolder) SetBlobTTL(ttl time.Duration) error {
	h.life.TTLNanos = int64(ttl)
	h.life.DeadTime = time.Now().Add(ttl).UnixNano()
	return h.part.updateLifecycle(h.blobID, h.life)
}

// DeleteBlob removes the blob immediately, from both disk and cache.
func (h *BlobLockHolder) DeleteBlob() error {
	if err := h.part.deleteBlob(h.blobID); err != nil {
		return err
	}
	h.s.cache.Erase(cacheKey(h.id))
	return nil
}

// ReleaseLock releases the underlying reader/writer lock back to the
// pool. A write access whose Blob was never finalized is discarded here
// (spec.md §4.C "Blob streaming": "discarding a Blob writer without
// finalization deletes the blob on lock release").
func (h *BlobLockHolder) ReleaseLock() {
	if h.released {
		return
	}
	h.released = true
	if h.write && h.blob != nil && !h.blob.finalized && !h.blob.discarding {
		h.blob.Discard()
		h.deleteOnRelease = true
	}
	if h.deleteOnRelease {
		h.part.deleteBlob(h.blobID)
		h.s.cache.Erase(cacheKey(h.id))
	}
	h.s.locks.release(h.lockKey, h.lockEntry, h.write)
	h.s.outstanding.Add(-1)
}

// CommitSize persists the final size of a freshly written blob. Callers
// writing a blob call this after Blob.Finalize and before ReleaseLock.
func (h *BlobLockHolder) CommitSize(size int64) error {
	h.life.Size = size
	return h.part.updateLifecycle(h.blobID, h.life)
}

// MarkCorrupted flags the holder so the blob is dropped on release
// (spec.md §4.C "Failure semantics": corruption sets a "delete on
// release" flag).
func (h *BlobLockHolder) MarkCorrupted() { h.deleteOnRelease = true }
