package format7

import (
	"fmt"
	"time"

	"github.com/kevmo314/go-iidc/pkg/errs"
	"github.com/kevmo314/go-iidc/pkg/registers"
)

type commitState int

const (
	commitIdle commitState = iota
	commitPending
	commitCommitted
	commitRejected
)

func (s commitState) String() string {
	switch s {
	case commitPending:
		return "pending"
	case commitCommitted:
		return "committed"
	case commitRejected:
		return "rejected"
	}
	return "idle"
}

// capabilities is what the protocol version allows, computed once per
// negotiation.
type capabilities struct {
	handshake       bool
	packetsPerFrame bool
	unitPosition    bool
	extended        bool
}

func capabilitiesOf(v registers.Version) capabilities {
	return capabilities{
		handshake:       v >= registers.Version1_30,
		packetsPerFrame: v >= registers.Version1_30,
		unitPosition:    v >= registers.Version1_30,
		extended:        v >= registers.Version1_31,
	}
}

// ValueSetting is the decoded VALUE_SETTING register.
type ValueSetting struct {
	Present    bool
	Setting    bool
	ErrorFlag1 bool
	ErrorFlag2 bool
}

func decodeValueSetting(v uint32) ValueSetting {
	return ValueSetting{
		Present:    v&registers.ValueSettingPresent != 0,
		Setting:    v&registers.ValueSettingSetting != 0,
		ErrorFlag1: v&registers.ValueSettingErrorFlag1 != 0,
		ErrorFlag2: v&registers.ValueSettingErrorFlag2 != 0,
	}
}

// commit makes the camera apply the values written to mode's registers.
// Cameras older than 1.30, or without the value setting feature, apply writes
// immediately and stay idle. packet enables the error flag 2 check.
func (n *Negotiator) commit(mode registers.Mode, caps capabilities, packet bool) error {
	if !caps.handshake {
		n.trace(mode, commitIdle)
		return nil
	}
	v, err := n.Camera.Format7Register(mode, registers.Format7RegisterValueSetting)
	if err != nil {
		return err
	}
	if v&registers.ValueSettingPresent == 0 {
		n.trace(mode, commitIdle)
		return nil
	}

	n.trace(mode, commitPending)
	if err := n.Camera.SetFormat7Register(mode, registers.Format7RegisterValueSetting, registers.ValueSettingSetting); err != nil {
		return err
	}
	deadline := time.Now().Add(n.HandshakeTimeout)
	for {
		if v, err = n.Camera.Format7Register(mode, registers.Format7RegisterValueSetting); err != nil {
			return err
		}
		if v&registers.ValueSettingSetting == 0 {
			break
		}
		if time.Now().After(deadline) {
			n.trace(mode, commitRejected)
			return fmt.Errorf("%s: %w after %s", mode, errs.ErrHandshakeTimeout, n.HandshakeTimeout)
		}
		time.Sleep(n.PollInterval)
	}

	vs := decodeValueSetting(v)
	if vs.ErrorFlag1 {
		n.trace(mode, commitRejected)
		return fmt.Errorf("%s: %w", mode, errs.ErrProtocolViolation)
	}
	if packet && vs.ErrorFlag2 {
		n.trace(mode, commitRejected)
		return fmt.Errorf("%s: %w", mode, errs.ErrInvalidPacketSize)
	}
	n.trace(mode, commitCommitted)
	return nil
}

func (n *Negotiator) trace(mode registers.Mode, s commitState) {
	n.Log.Trace().Uint64("guid", n.Camera.GUID()).Stringer("mode", mode).Stringer("state", s).Msg("[format7] value setting")
}
