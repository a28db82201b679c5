package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ls4154/golwal"
	"github.com/ls4154/golwal/db"
	"github.com/ls4154/golwal/env"
	"github.com/ls4154/golwal/fileio"
	"github.com/ls4154/golwal/log"
	"github.com/ls4154/golwal/util"
)

type config struct {
	file        string
	logNumber   uint64
	mode        db.WALRecoveryMode
	compression db.CompressionType
	hex         bool
	offset      uint64
	verify      bool
	verbose     bool
}

func main() {
	cfg := parseFlags()

	logger, err := newLogger(cfg.verbose)
	if err != nil {
		die(err.Error())
	}
	defer logger.Sync()

	if err := run(cfg, util.NewZapLogger(logger), os.Stdout); err != nil {
		die(err.Error())
	}
}

func parseFlags() config {
	var mode, compression string
	var logNumber int64
	cfg := config{}
	flag.StringVar(&cfg.file, "file", "", "log file to dump")
	flag.Int64Var(&logNumber, "lognum", -1, "log number of recyclable frames (-1: parse from file name)")
	flag.StringVar(&mode, "mode", "absolute", "recovery mode: absolute|tolerate|skip|pit")
	flag.StringVar(&compression, "compression", "no", "record compression: no|snappy")
	flag.BoolVar(&cfg.hex, "hex", false, "print record payloads in hex")
	flag.Uint64Var(&cfg.offset, "offset", 0, "start at the first record at or after this offset")
	flag.BoolVar(&cfg.verify, "verify", false, "only verify the log, print a summary")
	flag.BoolVar(&cfg.verbose, "v", false, "development logging")
	flag.Parse()

	if cfg.file == "" {
		die("-file is required")
	}

	var err error
	if cfg.mode, err = parseMode(mode); err != nil {
		die(err.Error())
	}
	if cfg.compression, err = parseCompression(compression); err != nil {
		die(err.Error())
	}

	if logNumber >= 0 {
		cfg.logNumber = uint64(logNumber)
	} else {
		ftype, num, ok := golwal.ParseFileName(filepath.Base(cfg.file))
		if !ok || ftype != golwal.FileTypeLog {
			die(fmt.Sprintf("cannot infer log number from %q, pass -lognum", cfg.file))
		}
		cfg.logNumber = num
	}
	return cfg
}

func parseMode(raw string) (db.WALRecoveryMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "absolute":
		return db.AbsoluteConsistency, nil
	case "tolerate":
		return db.TolerateCorruptedTailRecords, nil
	case "skip":
		return db.SkipAnyCorruptedRecords, nil
	case "pit":
		return db.PointInTimeRecovery, nil
	default:
		return 0, fmt.Errorf("invalid mode %q (allowed: absolute|tolerate|skip|pit)", raw)
	}
}

func parseCompression(raw string) (db.CompressionType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "no", "none":
		return db.NoCompression, nil
	case "snappy":
		return db.SnappyCompression, nil
	default:
		return db.NoCompression, fmt.Errorf("invalid compression %q (allowed: no|snappy)", raw)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	var zcfg zap.Config
	if verbose {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.Encoding = "console"
	}
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build()
}

type summary struct {
	records      int
	bytes        uint64
	droppedBytes uint64
	lastEnd      uint64
	stopped      bool
}

func run(cfg config, logger db.Logger, out io.Writer) error {
	f, err := env.DefaultEnv().NewSequentialFile(cfg.file, db.DefaultEnvOptions())
	if err != nil {
		return err
	}
	src := fileio.NewSequentialFileReader(f)
	defer src.Close()

	s, err := dump(cfg, src, logger, out)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d records, %d bytes, %d bytes dropped, last record ends at %d",
		filepath.Base(cfg.file), s.records, s.bytes, s.droppedBytes, s.lastEnd)
	if s.stopped {
		fmt.Fprint(out, ", stopped early")
	}
	fmt.Fprintln(out)
	return nil
}

func dump(cfg config, src log.Source, logger db.Logger, out io.Writer) (summary, error) {
	var opts []log.ReaderOption
	if cfg.compression != db.NoCompression {
		opts = append(opts, log.WithDecompression(cfg.compression))
	}
	reporter := log.LoggingReporter{Logger: logger, LogNumber: cfg.logNumber}
	reader := log.NewReader(src, cfg.logNumber, reporter, true, cfg.offset, opts...)

	var s summary
	var scratch []byte
	for {
		record, err := reader.ReadRecord(scratch, cfg.mode)
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return s, fmt.Errorf("offset %d: %w", reader.EndOfBufferOffset(), err)
		}
		s.records++
		s.bytes += uint64(len(record))

		if cfg.verify {
			continue
		}
		fmt.Fprintf(out, "offset=%d length=%d\n", reader.LastRecordOffset(), len(record))
		if cfg.hex {
			fmt.Fprint(out, hex.Dump(record))
		}
	}
	s.droppedBytes = reader.DroppedBytes()
	s.lastEnd = reader.LastRecordEnd()
	s.stopped = reader.Stopped()
	return s, nil
}

func die(msg string) {
	fmt.Fprintln(os.Stderr, "waldump:", msg)
	os.Exit(1)
}
