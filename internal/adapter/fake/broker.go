package fake

import (
	"context"

	"edgecore/internal/boot"
)

var _ boot.BrokerProber = (*Broker)(nil)

// Broker is a canned broker probe.
type Broker struct {
	CallRecorder

	ProbeErr func(ctx context.Context) error
}

func (b *Broker) Probe(ctx context.Context) error {
	b.record("Probe")
	if b.ProbeErr != nil {
		return b.ProbeErr(ctx)
	}
	return nil
}
