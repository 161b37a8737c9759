//go:build unix

package fsx

import (
	"errors"
	"syscall"
)

// isEXDEV 同时覆盖 os.Rename 返回的 *os.LinkError 与 afero 透传的裸 errno。
func isEXDEV(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}
