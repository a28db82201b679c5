package env

import "github.com/ls4154/golwal/db"

const defaultPageSize = 4 * 1024

func logicalSectorSize(opts db.EnvOptions) int {
	if opts.LogicalSectorSize > 0 {
		return opts.LogicalSectorSize
	}
	return defaultPageSize
}
