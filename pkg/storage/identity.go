package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/netcache-project/netcache/pkg/types"
)

// cacheKey encodes a blob identity as the single ordered string pkg/tree
// uses as its key type. The encoding only needs to be injective and
// deterministic — it is never persisted, and the tree does not depend on
// the encoding sorting identities in any semantically meaningful order.
func cacheKey(id types.Identity) string {
	return fmt.Sprintf("%s\x00%s\x00%d", id.Key, id.SubKey, id.Version)
}

// blobRecord is NCB: the identity row for one blob within a part.
type blobRecord struct {
	ID      uint64 `json:"id"`
	Key     string `json:"key"`
	SubKey  string `json:"skey"`
	Version int32  `json:"ver"`
}

// lifecycleRecord is NCI: the mutable lifecycle row for one blob.
type lifecycleRecord struct {
	ID         uint64 `json:"id"`
	AccessedAt int64  `json:"at"` // unix nanos
	DeadTime   int64  `json:"dt"` // unix nanos; 0 = no expiry
	Owner      string `json:"own"`
	Password   string `json:"pwd"`
	TTLNanos   int64  `json:"ttl"`
	Size       int64  `json:"sz"`
}

func idKey(id uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, id)
	return b
}

func idFromKey(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
