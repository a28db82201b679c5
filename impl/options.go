package impl

import (
	"cmp"
	"fmt"

	"github.com/ls4154/golwal/db"
	"github.com/ls4154/golwal/env"
	"github.com/ls4154/golwal/util"
)

func validateOption(userOpt *db.Options) (*db.Options, error) {
	if userOpt == nil {
		return nil, fmt.Errorf("%w: option is nil", db.ErrInvalidArgument)
	}

	opt := *userOpt

	if opt.Env == nil {
		opt.Env = env.DefaultEnv()
	}
	opt.Logger = util.LoggerOrNop(opt.Logger)

	envOpt := &opt.EnvOptions
	if envOpt.LogicalSectorSize == 0 {
		envOpt.LogicalSectorSize = db.DefaultEnvOptions().LogicalSectorSize
	}
	if !util.IsPowerOfTwo(envOpt.LogicalSectorSize) {
		return nil, fmt.Errorf("%w: logical sector size %d is not a power of two",
			db.ErrInvalidArgument, envOpt.LogicalSectorSize)
	}
	envOpt.LogicalSectorSize = clipToRange(envOpt.LogicalSectorSize, 512, 64<<10)
	if envOpt.WritableFileMaxBufferSize == 0 {
		envOpt.WritableFileMaxBufferSize = db.DefaultEnvOptions().WritableFileMaxBufferSize
	}
	envOpt.WritableFileMaxBufferSize = clipToRange(envOpt.WritableFileMaxBufferSize, 1<<10, 64<<20)

	if opt.RecoveryMode > db.PointInTimeRecovery {
		return nil, fmt.Errorf("%w: invalid recovery mode %d", db.ErrInvalidArgument, opt.RecoveryMode)
	}
	if opt.RecycleLogFiles && opt.RecoveryMode == db.AbsoluteConsistency {
		// a reused file always ends in bytes from its previous life
		return nil, fmt.Errorf("%w: recycled log files cannot be recovered with %v",
			db.ErrNotSupported, opt.RecoveryMode)
	}

	if opt.Compression != db.NoCompression && opt.Compression != db.SnappyCompression {
		return nil, fmt.Errorf("%w: invalid compression type", db.ErrInvalidArgument)
	}

	return &opt, nil
}

func clipToRange[T cmp.Ordered](val, minVal, maxVal T) T {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}
