//go:build windows

package iidc

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/kevmo314/go-iidc/pkg/errs"
)

func allocBuffer(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: buffer of %d bytes", errs.ErrNoMemory, size)
	}
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, fmt.Errorf("%w: VirtualAlloc %d bytes: %w", errs.ErrNoMemory, size, err)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func freeBuffer(b []byte) error {
	return windows.VirtualFree(uintptr(unsafe.Pointer(&b[0])), 0, windows.MEM_RELEASE)
}
