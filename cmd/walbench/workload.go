package main

import (
	"math/rand"
	"sync"
	"time"

	"github.com/ls4154/golwal"
	"github.com/ls4154/golwal/db"
)

type workerResult struct {
	records int64
	errors  int64
	bytes   int64
	hist    latencyHistogram
	elapsed time.Duration
}

func runAppend(l *golwal.Log, cfg config) runResult {
	start := time.Now()
	merged := runWorkers(cfg.num, cfg.threads, cfg.seed,
		func(_ int, wr *workerResult, rng *rand.Rand) {
			record := makeRecord(rng, cfg.recordSize, cfg.compressionRatio)

			t0 := time.Now()
			err := l.AddRecord(record, cfg.sync)
			wr.hist.Observe(time.Since(t0))
			if err != nil {
				wr.errors++
				return
			}
			wr.records++
			wr.bytes += int64(len(record))
		},
	)
	return finalizeResult(merged.records, merged.errors, merged.bytes, time.Since(start), merged.elapsed, merged.hist)
}

func runRecover(cfg config, opt *db.Options) (runResult, error) {
	hist := newLatencyHistogram()
	var records, bytes int64
	start := time.Now()
	last := start
	result, err := golwal.RecoverLogs(cfg.dir, opt, func(_ uint64, record []byte) error {
		now := time.Now()
		hist.Observe(now.Sub(last))
		last = now
		records++
		bytes += int64(len(record))
		return nil
	})
	if err != nil {
		return runResult{}, err
	}
	elapsed := time.Since(start)
	r := finalizeResult(records, 0, bytes, elapsed, elapsed, hist)
	r.message = recoveryMessage(result)
	return r, nil
}

func runWorkers(
	opsPerThread int,
	threads int,
	seed int64,
	fn func(i int, wr *workerResult, rng *rand.Rand),
) workerResult {
	var wg sync.WaitGroup
	out := make(chan workerResult, threads)

	for wid := 0; wid < threads; wid++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			wr := workerResult{hist: newLatencyHistogram()}
			rng := rand.New(rand.NewSource(seed + int64(workerID)))
			begin := time.Now()

			for i := 0; i < opsPerThread; i++ {
				fn(i, &wr, rng)
			}

			wr.elapsed = time.Since(begin)
			out <- wr
		}(wid)
	}

	wg.Wait()
	close(out)

	merged := workerResult{hist: newLatencyHistogram()}
	for wr := range out {
		merged.records += wr.records
		merged.errors += wr.errors
		merged.bytes += wr.bytes
		merged.elapsed += wr.elapsed
		merged.hist.Merge(wr.hist)
	}
	return merged
}

// makeRecord returns n bytes that compress to about compressionRatio of
// their size.
func makeRecord(r *rand.Rand, n int, compressionRatio float64) []byte {
	if n <= 0 {
		return nil
	}
	if compressionRatio <= 0 {
		compressionRatio = 0.01
	}
	raw := min(max(int(float64(n)*compressionRatio), 1), n)
	fragment := make([]byte, raw)
	for i := range fragment {
		fragment[i] = byte(' ' + r.Intn(95))
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = fragment[i%raw]
	}
	return out
}
