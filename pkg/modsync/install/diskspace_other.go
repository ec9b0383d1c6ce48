//go:build !unix

package install

import "errors"

var errFreeSpaceUnsupported = errors.New("free space check not supported on this platform")

func freeSpace(string) (uint64, error) {
	return 0, errFreeSpaceUnsupported
}
