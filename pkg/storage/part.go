package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/netcache-project/netcache/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketNCB = []byte("NCB") // id -> blobRecord (identity)
	bucketNCI = []byte("NCI") // id -> lifecycleRecord
	bucketNCC = []byte("NCC") // blob id -> JSON []uint64 chunk ids, in order
	bucketNCD = []byte("NCD") // chunk id -> raw bytes
)

// part is one rotation generation (spec.md §3 "Database part"): a pair of
// bbolt files, one holding blob identity/lifecycle metadata (NCB/NCI),
// the other holding chunk data (NCC/NCD).
type part struct {
	id        uint32
	metaPath  string
	dataPath  string
	createdAt time.Time
	minBlobID uint64

	meta *bolt.DB
	data *bolt.DB

	readOnly bool
}

func partFileNames(dir, name string, id uint32) (metaPath, dataPath string) {
	metaPath = filepath.Join(dir, fmt.Sprintf("%s.meta.%d.db", name, id))
	dataPath = filepath.Join(dir, fmt.Sprintf("%s.data.%d.db", name, id))
	return
}

func openPart(dir, name string, id uint32, minBlobID uint64, createdAt time.Time, readOnly bool) (*part, error) {
	metaPath, dataPath := partFileNames(dir, name, id)

	opts := &bolt.Options{ReadOnly: readOnly}
	meta, err := bolt.Open(metaPath, 0600, opts)
	if err != nil {
		return nil, newError("openPart", IOError, err)
	}
	data, err := bolt.Open(dataPath, 0600, opts)
	if err != nil {
		meta.Close()
		return nil, newError("openPart", IOError, err)
	}

	if !readOnly {
		if err := meta.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucketNCB)
			if err != nil {
				return err
			}
			_, err = tx.CreateBucketIfNotExists(bucketNCI)
			return err
		}); err != nil {
			meta.Close()
			data.Close()
			return nil, newError("openPart", IOError, err)
		}
		if err := data.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucketNCC)
			if err != nil {
				return err
			}
			_, err = tx.CreateBucketIfNotExists(bucketNCD)
			return err
		}); err != nil {
			meta.Close()
			data.Close()
			return nil, newError("openPart", IOError, err)
		}
	}

	return &part{
		id: id, metaPath: metaPath, dataPath: dataPath,
		createdAt: createdAt, minBlobID: minBlobID,
		meta: meta, data: data, readOnly: readOnly,
	}, nil
}

func (p *part) Close() error {
	err1 := p.meta.Close()
	err2 := p.data.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// remove closes and deletes both files backing the part.
func (p *part) remove() error {
	if err := p.Close(); err != nil {
		return err
	}
	if err := os.Remove(p.metaPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(p.dataPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// insertBlob allocates a fresh blob id from this part's NCB sequence —
// ids only need to be unique within a part, since coordinates always
// carry the part id alongside the blob id — and writes both the NCB
// identity row and the NCI lifecycle row for it in one transaction.
func (p *part) insertBlob(id types.Identity, life lifecycleRecord) (uint64, error) {
	if p.readOnly {
		return 0, newError("insertBlob", ReadOnlyAccess, nil)
	}
	var newID uint64
	err := p.meta.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNCB)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		newID = seq
		rec := blobRecord{ID: newID, Key: id.Key, SubKey: id.SubKey, Version: id.Version}
		recData, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := b.Put(idKey(newID), recData); err != nil {
			return err
		}
		life.ID = newID
		lifeData, err := json.Marshal(life)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketNCI).Put(idKey(newID), lifeData)
	})
	if err != nil {
		return 0, newError("insertBlob", IOError, err)
	}
	return newID, nil
}

func (p *part) updateLifecycle(id uint64, life lifecycleRecord) error {
	if p.readOnly {
		return newError("updateLifecycle", ReadOnlyAccess, nil)
	}
	return p.meta.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(life)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketNCI).Put(idKey(id), data)
	})
}

func (p *part) getBlob(id uint64) (blobRecord, lifecycleRecord, bool, error) {
	var rec blobRecord
	var life lifecycleRecord
	found := false
	err := p.meta.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketNCB).Get(idKey(id))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			return newError("getBlob", CorruptedDB, err)
		}
		lifeRaw := tx.Bucket(bucketNCI).Get(idKey(id))
		if lifeRaw == nil {
			return newError("getBlob", CorruptedDB, fmt.Errorf("missing NCI row for id %d", id))
		}
		if err := json.Unmarshal(lifeRaw, &life); err != nil {
			return newError("getBlob", CorruptedDB, err)
		}
		found = true
		return nil
	})
	return rec, life, found, err
}

func (p *part) deleteBlob(id uint64) error {
	if p.readOnly {
		return newError("deleteBlob", ReadOnlyAccess, nil)
	}
	chunkIDs, err := p.chunkIDs(id)
	if err != nil {
		return err
	}
	if err := p.meta.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketNCB).Delete(idKey(id)); err != nil {
			return err
		}
		return tx.Bucket(bucketNCI).Delete(idKey(id))
	}); err != nil {
		return newError("deleteBlob", IOError, err)
	}
	return p.data.Update(func(tx *bolt.Tx) error {
		ncc := tx.Bucket(bucketNCC)
		ncd := tx.Bucket(bucketNCD)
		if err := ncc.Delete(idKey(id)); err != nil {
			return err
		}
		for _, cid := range chunkIDs {
			if err := ncd.Delete(idKey(cid)); err != nil {
				return err
			}
		}
		return nil
	})
}

// forEachBlob iterates every NCB row in ascending id order, invoking fn
// with the blob's record and lifecycle row.
func (p *part) forEachBlob(fn func(blobRecord, lifecycleRecord) error) error {
	return p.meta.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNCB)
		i := tx.Bucket(bucketNCI)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec blobRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return newError("forEachBlob", CorruptedDB, err)
			}
			var life lifecycleRecord
			lifeRaw := i.Get(k)
			if lifeRaw == nil {
				return newError("forEachBlob", CorruptedDB, fmt.Errorf("missing NCI row for id %d", idFromKey(k)))
			}
			if err := json.Unmarshal(lifeRaw, &life); err != nil {
				return newError("forEachBlob", CorruptedDB, err)
			}
			if err := fn(rec, life); err != nil {
				return err
			}
		}
		return nil
	})
}

// deadIDsInRange returns ids of blobs whose dead_time falls in [lo, hi),
// the query driving one GC batch (spec.md §4.C "Garbage collection" step
// 2).
func (p *part) deadIDsInRange(lo, hi time.Time) ([]uint64, error) {
	var ids []uint64
	err := p.meta.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketNCI).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var life lifecycleRecord
			if err := json.Unmarshal(v, &life); err != nil {
				return newError("deadIDsInRange", CorruptedDB, err)
			}
			if life.DeadTime == 0 {
				continue
			}
			dt := time.Unix(0, life.DeadTime)
			if !dt.Before(lo) && dt.Before(hi) {
				ids = append(ids, idFromKey(k))
			}
		}
		return nil
	})
	return ids, err
}

// familyExists reports whether any version of (key, subkey) has a row in
// this part. Used only as the on-disk fallback for IsBlobFamilyExists,
// since the coordinate cache is keyed by full identity, not by family.
func (p *part) familyExists(key, subkey string) (bool, error) {
	found := false
	err := p.meta.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNCB).ForEach(func(_, v []byte) error {
			var rec blobRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.Key == key && rec.SubKey == subkey {
				found = true
			}
			return nil
		})
	})
	if err != nil {
		return false, newError("familyExists", CorruptedDB, err)
	}
	return found, nil
}

// findByIdentity scans NCB for a row matching id, used as the on-disk
// fallback for coordinate lookups while initial caching is still in
// progress (spec.md §4.C "Coordinate caching").
func (p *part) findByIdentity(id types.Identity) (uint64, bool) {
	var blobID uint64
	found := false
	p.meta.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNCB).ForEach(func(_, v []byte) error {
			var rec blobRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil
			}
			if rec.Key == id.Key && rec.SubKey == id.SubKey && rec.Version == id.Version {
				blobID = rec.ID
				found = true
			}
			return nil
		})
	})
	return blobID, found
}

func (p *part) isEmpty() (bool, error) {
	empty := true
	err := p.meta.View(func(tx *bolt.Tx) error {
		empty = tx.Bucket(bucketNCB).Stats().KeyN == 0
		return nil
	})
	return empty, err
}

func (p *part) touchCreatedAt(t time.Time) {
	p.createdAt = t
}

// blobCount returns the number of blob identity rows currently stored in
// this part, for metrics reporting.
func (p *part) blobCount() (int, error) {
	n := 0
	err := p.meta.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketNCB).Stats().KeyN
		return nil
	})
	return n, err
}

func (p *part) chunkIDs(blobID uint64) ([]uint64, error) {
	var ids []uint64
	err := p.data.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketNCC).Get(idKey(blobID))
		if raw == nil {
			return nil
		}
		return json.Unmarshal(raw, &ids)
	})
	if err != nil {
		return nil, newError("chunkIDs", CorruptedDB, err)
	}
	return ids, nil
}

func (p *part) setChunkIDs(blobID uint64, ids []uint64) error {
	return p.data.Update(func(tx *bolt.Tx) error {
		raw, err := json.Marshal(ids)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketNCC).Put(idKey(blobID), raw)
	})
}

func (p *part) putChunk(data []byte) (uint64, error) {
	var id uint64
	err := p.data.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNCD)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = seq
		return b.Put(idKey(id), data)
	})
	if err != nil {
		return 0, newError("putChunk", IOError, err)
	}
	return id, nil
}

func (p *part) getChunk(id uint64) ([]byte, error) {
	var out []byte
	err := p.data.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketNCD).Get(idKey(id))
		if raw == nil {
			return newError("getChunk", CorruptedDB, fmt.Errorf("missing chunk %d", id))
		}
		out = append([]byte(nil), raw...)
		return nil
	})
	return out, err
}

func (p *part) deleteChunks(ids []uint64) error {
	return p.data.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNCD)
		for _, id := range ids {
			if err := b.Delete(idKey(id)); err != nil {
				return err
			}
		}
		return nil
	})
}
