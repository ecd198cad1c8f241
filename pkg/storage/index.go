package storage

import (
	"encoding/json"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketNCN = []byte("NCN")

// partEntry is one NCN row (spec.md §6 "Index file"): a part's identity
// and the bounds it owns.
type partEntry struct {
	PartID    uint32 `json:"id"`
	MetaPath  string `json:"met"`
	DataPath  string `json:"dat"`
	CreatedAt int64  `json:"tm"` // unix nanos
	MinBlobID uint64 `json:"bid"`
}

// indexDB is the single small database listing every live part (spec.md
// §3 "Index database").
type indexDB struct {
	db *bolt.DB
}

func openIndex(dir, name string) (*indexDB, error) {
	path := filepath.Join(dir, name+".index.db")
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, newError("openIndex", IOError, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketNCN)
		return err
	}); err != nil {
		db.Close()
		return nil, newError("openIndex", IOError, err)
	}
	return &indexDB{db: db}, nil
}

func (x *indexDB) Close() error { return x.db.Close() }

func (x *indexDB) list() ([]partEntry, error) {
	var entries []partEntry
	err := x.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNCN).ForEach(func(k, v []byte) error {
			var e partEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	})
	return entries, err
}

func (x *indexDB) put(e partEntry) error {
	return x.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketNCN).Put(idKey(uint64(e.PartID)), data)
	})
}

func (x *indexDB) remove(partID uint32) error {
	return x.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNCN).Delete(idKey(uint64(partID)))
	})
}

func entryFromPart(p *part) partEntry {
	return partEntry{
		PartID:    p.id,
		MetaPath:  p.metaPath,
		DataPath:  p.dataPath,
		CreatedAt: p.createdAt.UnixNano(),
		MinBlobID: p.minBlobID,
	}
}

func timeOf(nanos int64) time.Time { return time.Unix(0, nanos) }
