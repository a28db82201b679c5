package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/ls4154/golwal"
	"github.com/ls4154/golwal/db"
	"github.com/ls4154/golwal/util"
)

type config struct {
	dir              string
	benchmarks       []string
	num              int
	threads          int
	recordSize       int
	compressionRatio float64
	compression      db.CompressionType
	sync             bool
	recycle          bool
	manualFlush      bool
	directWrites     bool
	bytesPerSync     uint64
	histogram        bool
	verbose          bool
	seed             int64
}

func main() {
	cfg := parseFlags()

	logger := zap.NewNop()
	if cfg.verbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			fatalf("logger: %v", err)
		}
	}
	defer logger.Sync()

	opt := options(cfg, util.NewZapLogger(logger))
	printBanner(cfg)
	printHeader(cfg)

	var nextLog uint64 = 1
	for _, name := range cfg.benchmarks {
		spec, err := benchSpecFor(name)
		if err != nil {
			fatalf("%v", err)
		}

		if spec.freshDir {
			if err := os.RemoveAll(cfg.dir); err != nil {
				fatalf("remove log dir: %v", err)
			}
			nextLog = 1
		}
		if err := os.MkdirAll(cfg.dir, 0o755); err != nil {
			fatalf("create log dir: %v", err)
		}

		var r runResult
		if spec.write {
			l, err := openLog(cfg, opt, spec, nextLog)
			if err != nil {
				fatalf("open log for %s: %v", name, err)
			}
			nextLog = l.Number() + 1
			r = runAppend(l, cfg)
			if err := l.Close(); err != nil {
				fatalf("close log after %s: %v", name, err)
			}
		} else {
			r, err = runRecover(cfg, opt)
			if err != nil {
				fatalf("%s: %v", name, err)
			}
		}
		printResult(cfg, name, r)
	}
}

func options(cfg config, logger db.Logger) *db.Options {
	opt := db.DefaultOptions()
	opt.Logger = logger
	opt.Compression = cfg.compression
	opt.RecycleLogFiles = cfg.recycle
	opt.ManualFlush = cfg.manualFlush
	opt.EnvOptions.UseDirectWrites = cfg.directWrites
	opt.EnvOptions.BytesPerSync = cfg.bytesPerSync
	return opt
}

func openLog(cfg config, opt *db.Options, spec benchSpec, num uint64) (*golwal.Log, error) {
	if spec.reuse && num > 1 {
		reuseOpt := *opt
		reuseOpt.RecycleLogFiles = true
		return golwal.ReuseLog(cfg.dir, num-1, num, &reuseOpt)
	}
	return golwal.CreateLog(cfg.dir, num, opt)
}

func printBanner(cfg config) {
	fmt.Printf("walbench: dir=%s num=%d threads=%d record_size=%d seed=%d sync=%v recycle=%v manual_flush=%v direct_writes=%v bytes_per_sync=%d compression=%s compression_ratio=%.2f\n",
		cfg.dir,
		cfg.num,
		cfg.threads,
		cfg.recordSize,
		cfg.seed,
		cfg.sync,
		cfg.recycle,
		cfg.manualFlush,
		cfg.directWrites,
		cfg.bytesPerSync,
		compressionName(cfg.compression),
		cfg.compressionRatio)
}

func printHeader(cfg config) {
	if cfg.histogram {
		fmt.Printf("%-12s %12s %12s %12s %12s %10s %8s %8s %8s\n",
			"benchmark", "records", "records/sec", "MB/sec", "avg(us)", "errors", "p50", "p95", "p99")
		return
	}
	fmt.Printf("%-12s %12s %12s %12s %12s %10s\n",
		"benchmark", "records", "records/sec", "MB/sec", "avg(us)", "errors")
}

func printResult(cfg config, name string, r runResult) {
	if cfg.histogram {
		fmt.Printf("%-12s %12d %12.0f %12.2f %12.1f %10d %8s %8s %8s\n",
			name,
			r.records,
			r.opsPerSec,
			r.mbPerSec,
			r.avgMicros,
			r.errors,
			formatDurationMicros(r.hist.percentile(50)),
			formatDurationMicros(r.hist.percentile(95)),
			formatDurationMicros(r.hist.percentile(99)),
		)
	} else {
		fmt.Printf("%-12s %12d %12.0f %12.2f %12.1f %10d\n",
			name,
			r.records,
			r.opsPerSec,
			r.mbPerSec,
			r.avgMicros,
			r.errors,
		)
	}
	if r.message != "" {
		fmt.Printf("%-12s %s\n", "", r.message)
	}
}

func recoveryMessage(r golwal.RecoveryResult) string {
	msg := fmt.Sprintf("logs=%d dropped_bytes=%d", len(r.Logs), r.DroppedBytes)
	if r.TruncatedLog != 0 {
		msg += fmt.Sprintf(" truncated=#%d@%d", r.TruncatedLog, r.TruncatedSize)
	}
	if len(r.SkippedLogs) > 0 {
		msg += fmt.Sprintf(" skipped=%d", len(r.SkippedLogs))
	}
	return msg
}

func parseFlags() config {
	var benchmarkList string
	var compression string
	cfg := config{}
	def := db.DefaultEnvOptions()

	flag.StringVar(&cfg.dir, "dir", "/tmp/golwal-bench", "log directory")
	flag.StringVar(&benchmarkList, "benchmarks", "append,recover", "comma-separated benchmark names: append|reuse|recover")
	flag.IntVar(&cfg.num, "num", 100000, "records per thread")
	flag.IntVar(&cfg.threads, "threads", 1, "number of writer goroutines")
	flag.IntVar(&cfg.recordSize, "record_size", 100, "record size in bytes")
	flag.StringVar(&compression, "compression", "no", "record compression: no|snappy")
	flag.Float64Var(&cfg.compressionRatio, "compression_ratio", 0.5, "compression ratio of generated records")
	flag.BoolVar(&cfg.sync, "sync", false, "sync every record")
	flag.BoolVar(&cfg.recycle, "recycle", false, "write recyclable frames")
	flag.BoolVar(&cfg.manualFlush, "manual_flush", false, "flush after every frame")
	flag.BoolVar(&cfg.directWrites, "direct_writes", def.UseDirectWrites, "use direct I/O for writes")
	flag.Uint64Var(&cfg.bytesPerSync, "bytes_per_sync", def.BytesPerSync, "incremental range sync interval (0: disable)")
	flag.BoolVar(&cfg.histogram, "histogram", false, "print latency histogram percentiles")
	flag.BoolVar(&cfg.verbose, "v", false, "log library messages to stderr")
	flag.Int64Var(&cfg.seed, "seed", 301, "rng seed")
	flag.Parse()

	cfg.benchmarks = parseBenchmarks(benchmarkList)
	cfg.compression = parseCompression(compression)
	if cfg.num <= 0 || cfg.threads <= 0 || cfg.recordSize < 0 {
		fatalf("invalid numeric flags")
	}
	return cfg
}

func parseCompression(raw string) db.CompressionType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "no", "none":
		return db.NoCompression
	case "snappy":
		return db.SnappyCompression
	default:
		fatalf("invalid compression %q (allowed: no|snappy)", raw)
		return db.NoCompression
	}
}

func compressionName(t db.CompressionType) string {
	switch t {
	case db.SnappyCompression:
		return "snappy"
	default:
		return "no"
	}
}

func parseBenchmarks(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		name := strings.TrimSpace(p)
		if name == "" {
			continue
		}
		out = append(out, name)
	}
	return out
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
