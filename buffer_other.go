//go:build !unix && !windows

package iidc

import (
	"fmt"

	"github.com/kevmo314/go-iidc/pkg/errs"
)

func allocBuffer(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: buffer of %d bytes", errs.ErrNoMemory, size)
	}
	return make([]byte, size), nil
}

func freeBuffer([]byte) error {
	return nil
}
