package storage

import (
	"time"

	"github.com/netcache-project/netcache/pkg/metrics"
	"github.com/netcache-project/netcache/pkg/types"
)

// runGCPass implements spec.md §4.C "Garbage collection": query each
// part oldest-first for blobs that died since the last successful pass,
// try to reclaim each one without blocking live traffic, and only
// advance the low-water mark if every attempt in the pass succeeded.
func (s *Storage) runGCPass() {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.GCPassDuration)

	next := time.Now()
	lastDead := time.Unix(0, s.lastDeadTime.Load())

	s.partsMu.RLock()
	parts := append([]*part(nil), s.parts...)
	var current *part
	if len(parts) > 0 {
		current = parts[len(parts)-1]
	}
	s.partsMu.RUnlock()

	complete := true
	for _, p := range parts {
		select {
		case <-s.stopCh:
			return
		default:
		}

		ids, err := p.deadIDsInRange(lastDead, next)
		if err != nil {
			s.log.Warn().Err(err).Uint32("part", p.id).Msg("gc: dead-id query failed")
			complete = false
			continue
		}

		for i := 0; i < len(ids); i += s.cfg.GCBatchSize {
			end := i + s.cfg.GCBatchSize
			if end > len(ids) {
				end = len(ids)
			}
			for _, id := range ids[i:end] {
				if !s.gcReclaim(p, id, next) {
					complete = false
				}
			}
			if s.cfg.GCBatchSleep > 0 {
				select {
				case <-s.stopCh:
					return
				case <-time.After(s.cfg.GCBatchSleep):
				}
			}
		}

		if p != current {
			if empty, _ := p.isEmpty(); empty {
				s.removePart(p)
			}
		}
	}

	if complete {
		s.lastDeadTime.Store(next.UnixNano())
	} else {
		metrics.GCIncompletePassesTotal.Inc()
	}
}

// gcReclaim tries to erase one expired blob without blocking a live
// accessor. It reports whether the pass can be considered complete for
// this id — true both when the blob was reclaimed (or already gone) and
// when it turned out not to be expired after all; false only when the
// lock was contended, per spec.md §4.C step 2: "if contended, skip and
// mark this GC pass as incomplete".
func (s *Storage) gcReclaim(p *part, blobID uint64, asOf time.Time) bool {
	rec, _, found, err := p.getBlob(blobID)
	if err != nil || !found {
		return true
	}
	key := cacheKey(types.Identity{Key: rec.Key, SubKey: rec.SubKey, Version: rec.Version})

	entry, acquired := s.locks.tryAcquireWrite(key)
	if !acquired {
		return false
	}
	defer s.locks.release(key, entry, true)

	_, life, found, err := p.getBlob(blobID)
	if err != nil || !found {
		return true
	}
	if life.DeadTime == 0 || timeOf(life.DeadTime).After(asOf) {
		// TTL was extended after the query ran; not actually dead.
		return true
	}
	if err := p.deleteBlob(blobID); err != nil {
		s.log.Warn().Err(err).Uint64("blob", blobID).Msg("gc: delete failed")
		return true
	}
	s.cache.Erase(key)
	metrics.GCReclaimedTotal.Inc()
	return true
}

func (s *Storage) removePart(p *part) {
	s.partsMu.Lock()
	defer s.partsMu.Unlock()
	idx := -1
	for i, q := range s.parts {
		if q == p {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	s.parts = append(s.parts[:idx], s.parts[idx+1:]...)
	s.index.remove(p.id)
	if err := p.remove(); err != nil {
		s.log.Warn().Err(err).Uint32("part", p.id).Msg("gc: failed to remove empty part files")
		return
	}
	metrics.GCPartsRemovedTotal.Inc()
}

// checkRotation implements spec.md §4.C "Part rotation".
func (s *Storage) checkRotation() {
	if s.cfg.ReadOnly {
		return
	}
	cur := s.currentPart()
	if cur == nil {
		return
	}
	period := s.cfg.rotatePeriod()
	if period <= 0 || time.Since(cur.createdAt) < period {
		return
	}

	empty, err := cur.isEmpty()
	if err != nil {
		s.log.Warn().Err(err).Msg("rotation: failed to check current part")
		return
	}
	if empty {
		cur.touchCreatedAt(time.Now())
		if err := s.index.put(entryFromPart(cur)); err != nil {
			s.log.Warn().Err(err).Msg("rotation: failed to persist rejuvenated part")
		}
		return
	}

	s.partsMu.Lock()
	defer s.partsMu.Unlock()
	p, err := s.createPart(time.Now())
	if err != nil {
		s.log.Warn().Err(err).Msg("rotation: failed to create new part")
		return
	}
	s.parts = append(s.parts, p)
	metrics.PartRotationsTotal.Inc()
}
