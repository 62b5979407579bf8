// Package iso tracks the isochronous channels and bandwidth each camera holds
// on a shared bus.
package iso

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kevmo314/go-iidc/pkg/errs"
)

// Device is the part of a camera the allocator needs.
type Device interface {
	GUID() uint64
	// ChannelMask is the set of channels the device can be programmed with.
	ChannelMask() uint64
}

// ReleasePolicy decides what ReleaseBandwidth does when asked to release
// more than the device holds.
type ReleasePolicy int

const (
	// ReleaseClamp releases what is held and succeeds.
	ReleaseClamp ReleasePolicy = iota
	// ReleaseStrict fails with errs.ErrInvalidParameter.
	ReleaseStrict
)

func ParseReleasePolicy(s string) (ReleasePolicy, error) {
	switch s {
	case "", "clamp":
		return ReleaseClamp, nil
	case "strict":
		return ReleaseStrict, nil
	}
	return 0, fmt.Errorf("unknown release policy %q", s)
}

// Grants is a snapshot of what one device holds.
type Grants struct {
	Owner     uuid.UUID
	Persist   bool
	Channels  []uint8
	Bandwidth int
}

type record struct {
	owner     uuid.UUID
	persist   bool
	channels  uint64
	bandwidth int
	// generation is the bus generation the grants were claimed in.
	generation uint64
}

func (r *record) empty() bool {
	return r.channels == 0 && r.bandwidth == 0
}

// Allocator keeps the grants of every device it has served. It is safe for
// concurrent use.
type Allocator struct {
	Bus    Bus
	Policy ReleasePolicy
	Log    zerolog.Logger

	mu      sync.Mutex
	records map[uint64]*record
}

func NewAllocator(bus Bus) *Allocator {
	return &Allocator{
		Bus:     bus,
		Log:     zerolog.Nop(),
		records: map[uint64]*record{},
	}
}

func (a *Allocator) record(dev Device) *record {
	r, ok := a.records[dev.GUID()]
	if !ok {
		r = &record{owner: uuid.New()}
		a.records[dev.GUID()] = r
	}
	return r
}

// generation returns the bus generation, or false when the bus does not count
// resets.
func (a *Allocator) generation() (uint64, bool) {
	rc, ok := a.Bus.(ResetCounter)
	if !ok {
		return 0, false
	}
	return rc.Generation(), true
}

// stale reports whether a bus reset dropped r's grants since they were
// claimed or last reclaimed.
func (a *Allocator) stale(r *record) bool {
	gen, ok := a.generation()
	return ok && !r.empty() && r.generation != gen
}

// granted stamps a record that is about to receive its first grant.
func (a *Allocator) granted(r *record) {
	if r.empty() {
		r.generation, _ = a.generation()
	}
}

// SetPersist makes the device's future grants survive Close. It must be
// called before the device holds anything.
func (a *Allocator) SetPersist(dev Device) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if r, ok := a.records[dev.GUID()]; ok && !r.empty() {
		return fmt.Errorf("%w: device %016x already holds iso resources", errs.ErrFailure, dev.GUID())
	}
	p, ok := a.Bus.(Persister)
	if !ok {
		return fmt.Errorf("%w: bus cannot persist iso resources", errs.ErrNotSupported)
	}
	if err := p.Persist(dev.GUID()); err != nil {
		return err
	}
	r := a.record(dev)
	r.persist = true
	a.Log.Debug().Uint64("guid", dev.GUID()).Str("owner", r.owner.String()).Msg("[iso] persist")
	return nil
}

// AllocateChannel claims the lowest free channel allowed by mask, or by the
// device's channel mask when mask is zero. The camera is not programmed.
func (a *Allocator) AllocateChannel(dev Device, mask uint64) (uint8, error) {
	if mask == 0 {
		mask = dev.ChannelMask()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for m := mask; m != 0; m &= m - 1 {
		ch := uint8(bits.TrailingZeros64(m))
		err := a.Bus.ClaimChannel(ch)
		if errors.Is(err, errs.ErrNoChannel) {
			continue
		}
		if err != nil {
			return 0, err
		}
		r := a.record(dev)
		a.granted(r)
		r.channels |= 1 << ch
		a.Log.Debug().Uint64("guid", dev.GUID()).Str("owner", r.owner.String()).Uint8("channel", ch).Msg("[iso] channel allocated")
		return ch, nil
	}
	return 0, fmt.Errorf("%w: mask 0x%016x", errs.ErrNoChannel, mask)
}

// ReleaseChannel frees ch bus-wide. Channels the device never held, or that
// are already free, are released without error.
func (a *Allocator) ReleaseChannel(dev Device, ch uint8) error {
	if ch > 63 {
		return fmt.Errorf("%w: channel %d", errs.ErrInvalidParameter, ch)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.Bus.FreeChannel(ch); err != nil {
		return err
	}
	if r, ok := a.records[dev.GUID()]; ok {
		r.channels &^= 1 << ch
	}
	a.Log.Debug().Uint64("guid", dev.GUID()).Uint8("channel", ch).Msg("[iso] channel released")
	return nil
}

// AllocateBandwidth adds units to the device's grant. Nothing is recorded
// when the bus refuses.
func (a *Allocator) AllocateBandwidth(dev Device, units int) error {
	if units <= 0 {
		return fmt.Errorf("%w: bandwidth %d", errs.ErrInvalidParameter, units)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.Bus.ClaimBandwidth(units); err != nil {
		return err
	}
	r := a.record(dev)
	a.granted(r)
	r.bandwidth += units
	a.Log.Debug().Uint64("guid", dev.GUID()).Str("owner", r.owner.String()).Int("units", units).Int("total", r.bandwidth).Msg("[iso] bandwidth allocated")
	return nil
}

// ReleaseBandwidth subtracts units from the device's grant, clamping at zero
// unless the policy is ReleaseStrict.
func (a *Allocator) ReleaseBandwidth(dev Device, units int) error {
	if units <= 0 {
		return fmt.Errorf("%w: bandwidth %d", errs.ErrInvalidParameter, units)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var held int
	r, ok := a.records[dev.GUID()]
	if ok {
		held = r.bandwidth
	}
	if a.Policy == ReleaseStrict && units > held {
		return fmt.Errorf("%w: release %d, device holds %d", errs.ErrInvalidParameter, units, held)
	}
	if err := a.Bus.FreeBandwidth(units); err != nil {
		return err
	}
	if ok {
		r.bandwidth = max(held-units, 0)
	}
	a.Log.Debug().Uint64("guid", dev.GUID()).Int("units", units).Int("total", max(held-units, 0)).Msg("[iso] bandwidth released")
	return nil
}

// ReleaseAll releases every grant of the device, continuing past failures.
// Grants that could not be released stay recorded.
func (a *Allocator) ReleaseAll(dev Device) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.releaseAll(dev.GUID())
}

func (a *Allocator) releaseAll(guid uint64) error {
	r, ok := a.records[guid]
	if !ok {
		return nil
	}
	if a.stale(r) {
		// The reset already freed them, and the bus may have handed them to
		// someone else since.
		a.Log.Debug().Uint64("guid", guid).Str("owner", r.owner.String()).Msg("[iso] dropping grants lost in a bus reset")
		r.channels, r.bandwidth = 0, 0
		return nil
	}
	var failed []error
	for m := r.channels; m != 0; m &= m - 1 {
		ch := uint8(bits.TrailingZeros64(m))
		if err := a.Bus.FreeChannel(ch); err != nil {
			failed = append(failed, fmt.Errorf("channel %d: %w", ch, err))
			continue
		}
		r.channels &^= 1 << ch
	}
	if r.bandwidth > 0 {
		if err := a.Bus.FreeBandwidth(r.bandwidth); err != nil {
			failed = append(failed, fmt.Errorf("bandwidth %d: %w", r.bandwidth, err))
		} else {
			r.bandwidth = 0
		}
	}
	if len(failed) > 0 {
		return errors.Join(append([]error{errs.ErrFailure}, failed...)...)
	}
	return nil
}

// Close forgets the device. Its grants are released unless it is persistent,
// in which case they stay recorded and claimed on the bus.
func (a *Allocator) Close(dev Device) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, ok := a.records[dev.GUID()]
	if !ok {
		return nil
	}
	if r.persist {
		a.Log.Debug().Uint64("guid", dev.GUID()).Str("owner", r.owner.String()).Msg("[iso] close, keeping persistent grants")
		return nil
	}
	err := a.releaseAll(dev.GUID())
	if r.empty() {
		delete(a.records, dev.GUID())
	}
	return err
}

// Reclaim claims again everything the device held before a bus reset. Grants
// the bus refuses are dropped from the record. On buses that count resets it
// does nothing unless a reset happened since the grants were claimed.
func (a *Allocator) Reclaim(dev Device) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, ok := a.records[dev.GUID()]
	if !ok {
		return nil
	}
	gen, counted := a.generation()
	if counted && r.generation == gen {
		a.Log.Debug().Uint64("guid", dev.GUID()).Uint64("generation", gen).Msg("[iso] reclaim, no bus reset")
		return nil
	}
	r.generation = gen
	var failed []error
	for m := r.channels; m != 0; m &= m - 1 {
		ch := uint8(bits.TrailingZeros64(m))
		if err := a.Bus.ClaimChannel(ch); err != nil {
			failed = append(failed, fmt.Errorf("channel %d: %w", ch, err))
			r.channels &^= 1 << ch
		}
	}
	if r.bandwidth > 0 {
		if err := a.Bus.ClaimBandwidth(r.bandwidth); err != nil {
			failed = append(failed, fmt.Errorf("bandwidth %d: %w", r.bandwidth, err))
			r.bandwidth = 0
		}
	}
	a.Log.Debug().Uint64("guid", dev.GUID()).Str("owner", r.owner.String()).Int("failed", len(failed)).Msg("[iso] reclaim")
	return errors.Join(failed...)
}

// Grants returns what the device holds. ok is false for unknown devices.
func (a *Allocator) Grants(dev Device) (Grants, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, ok := a.records[dev.GUID()]
	if !ok {
		return Grants{}, false
	}
	g := Grants{Owner: r.owner, Persist: r.persist, Bandwidth: r.bandwidth}
	for m := r.channels; m != 0; m &= m - 1 {
		g.Channels = append(g.Channels, uint8(bits.TrailingZeros64(m)))
	}
	return g, true
}
