//go:build !linux

package gnss

import (
	"fmt"
	"io"
)

func openDevice(path string, baud int) (io.ReadWriteCloser, error) {
	return nil, fmt.Errorf("gnss device not supported on this platform")
}
