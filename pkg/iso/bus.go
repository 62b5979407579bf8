package iso

import (
	"fmt"
	"math/bits"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kevmo314/go-iidc/pkg/errs"
)

// DefaultCapacity is the power-on value of the IEEE 1394 BANDWIDTH_AVAILABLE
// register, in allocation units. A unit is the time one quadlet takes at
// S1600; an isochronous cycle holds 6144 of them.
const DefaultCapacity = 4915

// Bus is the bus-wide resource domain shared by every process and host on a
// bus. Implementations serialize all calls.
type Bus interface {
	// ClaimChannel fails with errs.ErrNoChannel when ch is taken.
	ClaimChannel(ch uint8) error
	// FreeChannel succeeds for channels that are already free.
	FreeChannel(ch uint8) error
	// ClaimBandwidth fails with errs.ErrInsufficientBandwidth and claims
	// nothing when fewer than units remain.
	ClaimBandwidth(units int) error
	// FreeBandwidth returns units, never exceeding the bus capacity.
	FreeBandwidth(units int) error
	// Available returns the free channel set and the remaining bandwidth.
	Available() (channels uint64, bandwidth int)
}

// ResetCounter is implemented by buses that count bus resets. Grants claimed
// in an earlier generation are gone from the bus.
type ResetCounter interface {
	Generation() uint64
}

// Persister is implemented by buses that can keep a device's grants after
// the device handle is closed.
type Persister interface {
	Persist(guid uint64) error
}

// SharedBus is a Bus living inside one process, for hosts where the kernel
// does not arbitrate isochronous resources.
type SharedBus struct {
	// DisablePersist makes Persist fail with errs.ErrNotSupported.
	DisablePersist bool
	Log            zerolog.Logger

	mu         sync.Mutex
	capacity   int
	used       int
	channels   uint64
	generation uint64
}

func NewSharedBus(capacity int) *SharedBus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &SharedBus{capacity: capacity, Log: zerolog.Nop()}
}

func (b *SharedBus) ClaimChannel(ch uint8) error {
	if ch > 63 {
		return fmt.Errorf("%w: channel %d", errs.ErrInvalidParameter, ch)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.channels&(1<<ch) != 0 {
		return fmt.Errorf("%w: channel %d is taken", errs.ErrNoChannel, ch)
	}
	b.channels |= 1 << ch
	return nil
}

func (b *SharedBus) FreeChannel(ch uint8) error {
	if ch > 63 {
		return fmt.Errorf("%w: channel %d", errs.ErrInvalidParameter, ch)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels &^= 1 << ch
	return nil
}

func (b *SharedBus) ClaimBandwidth(units int) error {
	if units <= 0 {
		return fmt.Errorf("%w: bandwidth %d", errs.ErrInvalidParameter, units)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.capacity-b.used < units {
		return fmt.Errorf("%w: want %d, %d available", errs.ErrInsufficientBandwidth, units, b.capacity-b.used)
	}
	b.used += units
	return nil
}

func (b *SharedBus) FreeBandwidth(units int) error {
	if units <= 0 {
		return fmt.Errorf("%w: bandwidth %d", errs.ErrInvalidParameter, units)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.used = max(b.used-units, 0)
	return nil
}

func (b *SharedBus) Available() (uint64, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ^b.channels, b.capacity - b.used
}

func (b *SharedBus) Persist(guid uint64) error {
	if b.DisablePersist {
		return fmt.Errorf("%w: persistent iso resources", errs.ErrNotSupported)
	}
	return nil
}

// Reset drops every claim, as a bus reset does, and starts a new generation.
func (b *SharedBus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Log.Debug().
		Int("channels", bits.OnesCount64(b.channels)).
		Int("bandwidth", b.used).
		Uint64("generation", b.generation+1).
		Msg("[iso] bus reset")
	b.channels = 0
	b.used = 0
	b.generation++
}

// Generation counts the resets seen so far.
func (b *SharedBus) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generation
}
