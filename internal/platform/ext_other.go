//go:build !linux && !darwin

package platform

import (
	"fmt"
	"runtime"
)

func detect() Suffixes {
	panic(fmt.Sprintf("dynmod: unsupported operating system %q, only linux and darwin can load modules", runtime.GOOS))
}
