package lsh

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/newsroom-io/syndication-detector/internal/detector/minhash"
	apperrors "github.com/newsroom-io/syndication-detector/pkg/errors"
)

// Snapshot wire layout: a 12-byte header (magic, format version, CRC32 of
// the payload) followed by a gob-encoded payload. Buckets are rebuilt from
// the stored signatures at load time, so only entries and their expiry
// timestamps travel.
const (
	snapshotMagic   uint32 = 0x53594E44 // "SYND"
	snapshotVersion uint32 = 1
	headerSize             = 12
)

type snapshotPayload struct {
	Params  Params
	Seed    uint64
	TTL     time.Duration
	Entries map[string]snapshotEntry
}

type snapshotEntry struct {
	Sig       []uint64
	ExpiresAt int64 // unix nanoseconds
}

// Marshal serialises the full index state into an opaque blob. The seed is
// embedded so a snapshot produced under different permutations is rejected
// instead of silently matching nothing.
func (ix *Index) Marshal(seed uint64) ([]byte, error) {
	payload := snapshotPayload{
		Params:  ix.params,
		Seed:    seed,
		TTL:     ix.ttl,
		Entries: make(map[string]snapshotEntry, len(ix.entries)),
	}
	for key, e := range ix.entries {
		payload.Entries[key] = snapshotEntry{
			Sig:       e.sig,
			ExpiresAt: e.expiresAt.UnixNano(),
		}
	}

	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(payload); err != nil {
		return nil, fmt.Errorf("encoding snapshot payload: %w", err)
	}

	blob := make([]byte, headerSize+body.Len())
	binary.LittleEndian.PutUint32(blob[0:4], snapshotMagic)
	binary.LittleEndian.PutUint32(blob[4:8], snapshotVersion)
	binary.LittleEndian.PutUint32(blob[8:12], crc32.ChecksumIEEE(body.Bytes()))
	copy(blob[headerSize:], body.Bytes())
	return blob, nil
}

// Unmarshal reconstructs an Index from a snapshot blob. A bad magic,
// version, checksum, or a parameter/seed mismatch returns
// ErrSnapshotCorrupt, which callers treat as "run full recovery".
func Unmarshal(blob []byte, params Params, ttl time.Duration, seed uint64) (*Index, error) {
	if len(blob) < headerSize {
		return nil, fmt.Errorf("%w: blob too short (%d bytes)", apperrors.ErrSnapshotCorrupt, len(blob))
	}
	if magic := binary.LittleEndian.Uint32(blob[0:4]); magic != snapshotMagic {
		return nil, fmt.Errorf("%w: bad magic %#x", apperrors.ErrSnapshotCorrupt, magic)
	}
	if version := binary.LittleEndian.Uint32(blob[4:8]); version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", apperrors.ErrSnapshotCorrupt, version)
	}
	body := blob[headerSize:]
	if sum := crc32.ChecksumIEEE(body); sum != binary.LittleEndian.Uint32(blob[8:12]) {
		return nil, fmt.Errorf("%w: checksum mismatch", apperrors.ErrSnapshotCorrupt)
	}

	var payload snapshotPayload
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decoding payload: %v", apperrors.ErrSnapshotCorrupt, err)
	}
	if payload.Params != params {
		return nil, fmt.Errorf("%w: band layout mismatch: snapshot %+v, configured %+v",
			apperrors.ErrSnapshotCorrupt, payload.Params, params)
	}
	if payload.Seed != seed {
		return nil, fmt.Errorf("%w: permutation seed mismatch: snapshot %d, configured %d",
			apperrors.ErrSnapshotCorrupt, payload.Seed, seed)
	}

	ix := New(params, ttl)
	for key, se := range payload.Entries {
		ix.insertAt(key, minhash.Signature(se.Sig), time.Unix(0, se.ExpiresAt))
	}
	return ix, nil
}
