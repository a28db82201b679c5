//go:build debug

package util

import (
	"fmt"
	"runtime"
)

func Assert(cond bool) {
	if cond {
		return
	}
	pc, file, no, ok := runtime.Caller(1)
	if ok {
		name := runtime.FuncForPC(pc).Name()
		panic(fmt.Sprintf("assertion failed (%s:%d:%s)", file, no, name))
	}
	panic("assertion failed")
}
