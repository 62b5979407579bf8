//go:build unix

package iidc

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/kevmo314/go-iidc/pkg/errs"
)

// allocBuffer maps size bytes of anonymous, page aligned memory.
func allocBuffer(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: buffer of %d bytes", errs.ErrNoMemory, size)
	}
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %d bytes: %w", errs.ErrNoMemory, size, err)
	}
	return b, nil
}

func freeBuffer(b []byte) error {
	return unix.Munmap(b)
}
