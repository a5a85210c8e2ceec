// Package lsh implements a banded locality-sensitive-hashing index over
// MinHash signatures with per-entry time-to-live. Two documents become
// candidates when at least one band of their signatures hashes to the same
// bucket; the band/row split trades recall against precision with an
// effective similarity threshold of roughly (1/bands)^(1/rows).
//
// The index is not internally synchronised. A shard serialises all access
// so that the classifier's insert-then-query sequence is one atomic unit.
package lsh

import (
	"encoding/binary"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/newsroom-io/syndication-detector/internal/detector/minhash"
)

// Params fixes the signature length and band layout of an index. NumPerm
// must equal Bands*Rows; snapshots written under different Params are
// rejected at load time.
type Params struct {
	NumPerm int
	Bands   int
	Rows    int
}

type entry struct {
	sig       minhash.Signature
	expiresAt time.Time
}

// BatchEntry is one (key, signature) pair for bulk insertion, stamped with
// its own insertion time so recovered entries age from when the article was
// crawled, not from when recovery ran.
type BatchEntry struct {
	Key string
	Sig minhash.Signature
	At  time.Time
}

// Index is a banded LSH table with TTL tracking. Keys are opaque composite
// strings; entries are cumulative and an entry appears in at most one bucket
// per band.
type Index struct {
	params  Params
	ttl     time.Duration
	buckets []map[uint64][]string
	entries map[string]entry
	expiry  expiryHeap
}

// New creates an empty Index with the given band layout and TTL.
func New(params Params, ttl time.Duration) *Index {
	buckets := make([]map[uint64][]string, params.Bands)
	for i := range buckets {
		buckets[i] = make(map[uint64][]string)
	}
	return &Index{
		params:  params,
		ttl:     ttl,
		buckets: buckets,
		entries: make(map[string]entry),
	}
}

// Params returns the index's band layout.
func (ix *Index) Params() Params {
	return ix.params
}

// TTL returns the configured entry lifetime.
func (ix *Index) TTL() time.Duration {
	return ix.ttl
}

// Len returns the number of live entries, expired-but-unswept ones included.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Insert adds the entry to every band bucket derived from its signature and
// records its expiry as now+ttl. Re-inserting an existing key refreshes its
// expiry without duplicating bucket membership. Identity signatures are
// tracked for expiry but never bucketed.
func (ix *Index) Insert(key string, sig minhash.Signature, now time.Time) {
	ix.insertAt(key, sig, now.Add(ix.ttl))
}

// InsertBatch performs bulk insertion as one logical pass. The recovery
// pipeline uses it to load a freshly built index before the shard is exposed
// to live traffic.
func (ix *Index) InsertBatch(batch []BatchEntry) {
	for _, be := range batch {
		ix.insertAt(be.Key, be.Sig, be.At.Add(ix.ttl))
	}
}

func (ix *Index) insertAt(key string, sig minhash.Signature, expiresAt time.Time) {
	if prev, ok := ix.entries[key]; ok {
		prev.expiresAt = expiresAt
		ix.entries[key] = prev
		ix.expiry.push(key, expiresAt)
		return
	}
	ix.entries[key] = entry{sig: sig, expiresAt: expiresAt}
	ix.expiry.push(key, expiresAt)
	if sig.Empty() {
		return
	}
	for band := 0; band < ix.params.Bands; band++ {
		bk := ix.bandKey(band, sig)
		ix.buckets[band][bk] = append(ix.buckets[band][bk], key)
	}
}

// Query returns the keys sharing at least one band bucket with the given
// signature. Entries whose TTL has passed at query time are never returned,
// swept or not.
func (ix *Index) Query(sig minhash.Signature, now time.Time) []string {
	if sig.Empty() {
		return nil
	}
	seen := make(map[string]struct{})
	var candidates []string
	for band := 0; band < ix.params.Bands; band++ {
		bk := ix.bandKey(band, sig)
		for _, key := range ix.buckets[band][bk] {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			e, ok := ix.entries[key]
			if !ok || !e.expiresAt.After(now) {
				continue
			}
			candidates = append(candidates, key)
		}
	}
	return candidates
}

// Remove deletes the entry from all its band buckets and from expiry
// tracking. Unknown keys are a no-op.
func (ix *Index) Remove(key string) {
	e, ok := ix.entries[key]
	if !ok {
		return
	}
	delete(ix.entries, key)
	if e.sig.Empty() {
		return
	}
	for band := 0; band < ix.params.Bands; band++ {
		bk := ix.bandKey(band, e.sig)
		bucket := ix.buckets[band][bk]
		for i, k := range bucket {
			if k == key {
				bucket[i] = bucket[len(bucket)-1]
				ix.buckets[band][bk] = bucket[:len(bucket)-1]
				break
			}
		}
		if len(ix.buckets[band][bk]) == 0 {
			delete(ix.buckets[band], bk)
		}
	}
}

// Expired returns the keys whose expiry has passed, without removing them.
func (ix *Index) Expired(now time.Time) []string {
	var keys []string
	for key, e := range ix.entries {
		if !e.expiresAt.After(now) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Sweep removes all expired entries and returns how many were evicted. Cost
// is proportional to the number of actually expired entries: the expiry heap
// is ordered, so a warm non-expiring index pays a single peek.
func (ix *Index) Sweep(now time.Time) int {
	evicted := 0
	for {
		key, expiresAt, ok := ix.expiry.peek()
		if !ok || expiresAt.After(now) {
			return evicted
		}
		ix.expiry.pop()
		e, live := ix.entries[key]
		if !live || e.expiresAt.After(now) {
			// Stale heap item: the key was removed or re-inserted with a
			// fresher expiry after this item was pushed.
			continue
		}
		ix.Remove(key)
		evicted++
	}
}

// bandKey hashes one band's rows of the signature into a bucket key.
func (ix *Index) bandKey(band int, sig minhash.Signature) uint64 {
	var buf [8]byte
	h := xxhash.New()
	start := band * ix.params.Rows
	for _, v := range sig[start : start+ix.params.Rows] {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	return h.Sum64()
}
