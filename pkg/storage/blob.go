package storage

import "io"

// ChunkSize is the fixed maximum size of a chunk (spec.md §3 "Chunk",
// recommended ~2 MB).
const ChunkSize = 2 << 20

// Blob streams a single blob's bytes chunk by chunk (spec.md §4.C "Blob
// streaming"), so that reading or writing a multi-megabyte value never
// requires holding the whole thing in memory at once.
type Blob struct {
	part   *part
	blobID uint64

	// read side
	readChunks []uint64
	chunkIdx   int
	readBuf    []byte
	readPos    int

	// write side
	writeBuf   []byte
	newChunks  []uint64
	oldChunks  []uint64
	finalized  bool
	discarding bool
	maxSize    int64 // 0 = unlimited
	written    int64
}

func newReadBlob(p *part, blobID uint64, chunkIDs []uint64) *Blob {
	return &Blob{part: p, blobID: blobID, readChunks: chunkIDs}
}

// newWriteBlob opens blobID for writing. oldChunks is whatever chunk list
// it held before (nil for a brand new blob) — since every write allocates
// fresh chunk ids rather than overwriting in place, Finalize deletes
// these once the new list is safely persisted (spec.md §4.C "Blob
// streaming": "truncates any surviving chunks past the new end").
func newWriteBlob(p *part, blobID uint64, maxSize int64, oldChunks []uint64) *Blob {
	return &Blob{part: p, blobID: blobID, writeBuf: make([]byte, 0, ChunkSize), maxSize: maxSize, oldChunks: oldChunks}
}

// Read implements io.Reader, fetching the next chunk from disk whenever
// the current one is exhausted.
func (b *Blob) Read(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		if b.readPos >= len(b.readBuf) {
			if b.chunkIdx >= len(b.readChunks) {
				if total > 0 {
					return total, nil
				}
				return 0, io.EOF
			}
			chunk, err := b.part.getChunk(b.readChunks[b.chunkIdx])
			if err != nil {
				return total, err
			}
			b.readBuf = chunk
			b.readPos = 0
			b.chunkIdx++
		}
		n := copy(p[total:], b.readBuf[b.readPos:])
		b.readPos += n
		total += n
	}
	return total, nil
}

// Write implements io.Writer, flushing a full chunk to disk whenever the
// working buffer fills (spec.md §4.C "Blob streaming").
func (b *Blob) Write(p []byte) (int, error) {
	if b.finalized {
		return 0, newError("Blob.Write", IOError, io.ErrClosedPipe)
	}
	total := 0
	for len(p) > 0 {
		if b.maxSize > 0 && b.written+int64(len(b.writeBuf))+int64(len(p)) > b.maxSize {
			return total, newError("Blob.Write", TooBigBlob, nil)
		}
		room := ChunkSize - len(b.writeBuf)
		n := room
		if n > len(p) {
			n = len(p)
		}
		b.writeBuf = append(b.writeBuf, p[:n]...)
		p = p[n:]
		total += n
		if len(b.writeBuf) == ChunkSize {
			if err := b.flushChunk(); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

func (b *Blob) flushChunk() error {
	id, err := b.part.putChunk(b.writeBuf)
	if err != nil {
		return err
	}
	b.newChunks = append(b.newChunks, id)
	b.written += int64(len(b.writeBuf))
	b.writeBuf = b.writeBuf[:0]
	return nil
}

// Finalize flushes any partial final chunk, persists the chunk list, and
// marks the blob valid (spec.md §4.C "Blob streaming"). It returns the
// blob's final size.
func (b *Blob) Finalize() (int64, error) {
	if b.finalized {
		return b.written, nil
	}
	if len(b.writeBuf) > 0 {
		if err := b.flushChunk(); err != nil {
			return 0, err
		}
	}
	if err := b.part.setChunkIDs(b.blobID, b.newChunks); err != nil {
		return 0, err
	}
	b.finalized = true
	if len(b.oldChunks) > 0 {
		if err := b.part.deleteChunks(b.oldChunks); err != nil {
			return b.written, err
		}
	}
	return b.written, nil
}

// Discard deletes whatever chunks were written without finalizing,
// implementing spec.md §4.C's "discarding a Blob writer without
// finalization deletes the blob on lock release".
func (b *Blob) Discard() error {
	if b.finalized || b.discarding {
		return nil
	}
	b.discarding = true
	if len(b.newChunks) == 0 {
		return nil
	}
	return b.part.deleteChunks(b.newChunks)
}
