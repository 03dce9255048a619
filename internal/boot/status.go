package boot

import (
	"context"
	"errors"

	"edgecore/internal/devices"
	"edgecore/internal/link"
)

// CheckState is the state of one read-only status check.
type CheckState uint8

const (
	// CheckSkipped means a prerequisite check failed.
	CheckSkipped CheckState = iota
	CheckPassed
	CheckFailed
)

// StatusReport is the read-only view of the edge. Building it never
// writes files, registers the edge or starts containers.
type StatusReport struct {
	CredentialsFound bool
	Token            CheckState
	TokenErr         error
	Broker           CheckState
	BrokerErr        error

	// Fingerprint is empty when it has not been persisted yet.
	Fingerprint string
	Environment string
	LinkErr     error

	Devices    []devices.Device
	DevicesErr error
	Cameras    []devices.Camera
}

// Linked reports whether a valid environment link exists.
func (s StatusReport) Linked() bool { return s.Environment != "" }

// Status performs the non-mutating subset of the boot checks.
func (o *Orchestrator) Status(ctx context.Context) StatusReport {
	var st StatusReport

	if fp, ok := o.deps.Fingerprint.Load(); ok {
		st.Fingerprint = fp
	}
	if id, err := o.deps.Link.Peek(); err == nil {
		st.Environment = id.String()
	} else if !errors.Is(err, link.ErrNotLinked) {
		st.LinkErr = err
	}
	if o.deps.Devices != nil {
		st.Devices, st.DevicesErr = o.deps.Devices.Configured()
		st.Cameras = o.deps.Devices.Cameras()
	}

	token, ok := o.deps.Credentials.LoadToken()
	if !ok {
		return st
	}
	st.CredentialsFound = true

	if err := o.deps.NewCloud(token).ValidateToken(ctx); err != nil {
		st.Token, st.TokenErr = CheckFailed, err
		return st
	}
	st.Token = CheckPassed

	if o.deps.NewBroker == nil {
		return st
	}
	if err := o.deps.NewBroker(token).Probe(ctx); err != nil {
		st.Broker, st.BrokerErr = CheckFailed, err
	} else {
		st.Broker = CheckPassed
	}
	return st
}
