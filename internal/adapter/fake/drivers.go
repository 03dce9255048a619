package fake

import (
	"context"
	"sync"

	"edgecore/internal/boot"
	"edgecore/internal/driver"
)

var _ boot.DriverRunner = (*Drivers)(nil)

// Drivers records driver start requests. Every run succeeds unless
// RunResult says otherwise.
type Drivers struct {
	CallRecorder

	mu       sync.Mutex
	Requests []driver.Request

	RunResult func(req driver.Request) bool
}

func (d *Drivers) Run(_ context.Context, req driver.Request) bool {
	d.record("Run", req.TwinUUID, req.Image)
	d.mu.Lock()
	d.Requests = append(d.Requests, req)
	d.mu.Unlock()
	if d.RunResult != nil {
		return d.RunResult(req)
	}
	return true
}

// Started returns the requests that were run.
func (d *Drivers) Started() []driver.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]driver.Request(nil), d.Requests...)
}
