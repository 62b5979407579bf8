// Package transport carries single quadlet register transactions to a camera.
package transport

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Transport reads and writes 32-bit registers at offsets relative to
// registers.ConfigROMBase. Calls are synchronous; an error aborts whatever
// operation issued them.
type Transport interface {
	ReadQuadlet(offset uint64) (uint32, error)
	WriteQuadlet(offset uint64, value uint32) error
}

type traced struct {
	Transport
	log zerolog.Logger
}

// Traced logs every transaction on t at trace level.
func Traced(t Transport, log zerolog.Logger) Transport {
	return &traced{Transport: t, log: log}
}

func (t *traced) ReadQuadlet(offset uint64) (uint32, error) {
	v, err := t.Transport.ReadQuadlet(offset)
	t.log.Trace().Err(err).Str("offset", fmt.Sprintf("0x%x", offset)).Uint32("value", v).Msg("[transport] read")
	return v, err
}

func (t *traced) WriteQuadlet(offset uint64, value uint32) error {
	err := t.Transport.WriteQuadlet(offset, value)
	t.log.Trace().Err(err).Str("offset", fmt.Sprintf("0x%x", offset)).Uint32("value", value).Msg("[transport] write")
	return err
}
