// Package benchmark contains Go benchmarks for the signature pipeline and
// the LSH index, measuring throughput and allocation behaviour.
package benchmark

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/newsroom-io/syndication-detector/internal/detector/lsh"
	"github.com/newsroom-io/syndication-detector/internal/detector/minhash"
	"github.com/newsroom-io/syndication-detector/internal/detector/shard"
	"github.com/newsroom-io/syndication-detector/internal/detector/tokenizer"
)

var benchParams = lsh.Params{NumPerm: 128, Bands: 8, Rows: 16}

func benchArticle(i int) string {
	var b strings.Builder
	for w := 0; w < 300; w++ {
		fmt.Fprintf(&b, "word%d-%d ", i%50, w)
	}
	return b.String()
}

// BenchmarkTokenize measures normalisation of a 300-word article body.
func BenchmarkTokenize(b *testing.B) {
	body := benchArticle(0)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tokenizer.TokenSet(body, "english")
	}
}

// BenchmarkSign measures 128-permutation signature generation over a
// pre-tokenised article.
func BenchmarkSign(b *testing.B) {
	gen := minhash.NewGenerator(benchParams.NumPerm, 1)
	tokens := tokenizer.TokenSet(benchArticle(0), "english")
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		gen.Sign(tokens)
	}
}

// BenchmarkIndexInsert measures per-document insert throughput into the
// banded index.
func BenchmarkIndexInsert(b *testing.B) {
	gen := minhash.NewGenerator(benchParams.NumPerm, 1)
	ix := lsh.New(benchParams, 24*time.Hour)
	sigs := make([]minhash.Signature, 50)
	for i := range sigs {
		sigs[i] = gen.Sign(tokenizer.TokenSet(benchArticle(i), "english"))
	}
	now := time.Now()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ix.Insert(fmt.Sprintf("a%d|site.com", i), sigs[i%len(sigs)], now)
	}
}

// BenchmarkIndexQuery measures candidate lookup against a 10 000-entry
// index.
func BenchmarkIndexQuery(b *testing.B) {
	gen := minhash.NewGenerator(benchParams.NumPerm, 1)
	ix := lsh.New(benchParams, 24*time.Hour)
	sigs := make([]minhash.Signature, 50)
	for i := range sigs {
		sigs[i] = gen.Sign(tokenizer.TokenSet(benchArticle(i), "english"))
	}
	now := time.Now()
	for i := 0; i < 10000; i++ {
		ix.Insert(fmt.Sprintf("a%d|site%d.com", i, i%100), sigs[i%len(sigs)], now)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ix.Query(sigs[i%len(sigs)], now)
	}
}

// BenchmarkClassify measures the full classify path, sweep and insert
// included, against a warm shard.
func BenchmarkClassify(b *testing.B) {
	gen := minhash.NewGenerator(benchParams.NumPerm, 1)
	sh := shard.New("english", gen, lsh.New(benchParams, 24*time.Hour), nil)
	for i := 0; i < 1000; i++ {
		sh.Classify(benchArticle(i), fmt.Sprintf("site%d.com", i%20), fmt.Sprintf("warm-%d", i))
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sh.Classify(benchArticle(i), "bench.com", fmt.Sprintf("bench-%d", i))
	}
}

// BenchmarkSnapshotMarshal measures serialisation of a 10 000-entry index.
func BenchmarkSnapshotMarshal(b *testing.B) {
	gen := minhash.NewGenerator(benchParams.NumPerm, 1)
	ix := lsh.New(benchParams, 24*time.Hour)
	now := time.Now()
	for i := 0; i < 10000; i++ {
		ix.Insert(fmt.Sprintf("a%d|site.com", i), gen.Sign(tokenizer.TokenSet(benchArticle(i), "english")), now)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ix.Marshal(1); err != nil {
			b.Fatal(err)
		}
	}
}
