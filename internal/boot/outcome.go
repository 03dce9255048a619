package boot

import (
	"edgecore/internal/twin"
)

// Result classifies how a step ended.
type Result uint8

const (
	// ResultOK means the step succeeded.
	ResultOK Result = iota + 1
	// ResultNone means there was nothing to do, e.g. no linked environment.
	ResultNone
	// ResultSoftFail is reported but the sequence continues.
	ResultSoftFail
	// ResultHardFail aborts the sequence.
	ResultHardFail
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultNone:
		return "none"
	case ResultSoftFail:
		return "soft_fail"
	case ResultHardFail:
		return "hard_fail"
	default:
		return "unknown"
	}
}

// Label is the status word shown to operators.
func (r Result) Label() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultNone:
		return "NONE"
	default:
		return "FAIL"
	}
}

func (r Result) Failed() bool {
	return r == ResultSoftFail || r == ResultHardFail
}

// Outcome is the result of one boot step.
type Outcome struct {
	Phase  Phase
	Result Result
	// Detail is a short annotation shown next to the status, e.g. the
	// environment uuid or the number of drivers started.
	Detail string
	Err    error
	// Hint tells the operator how to fix a failure.
	Hint string
}

// DriverResult is the provisioning result for one claimed twin.
type DriverResult struct {
	Twin    twin.Twin
	Image   string
	Started bool
	// Misconfigured is set when the twin or asset driver descriptor is
	// invalid rather than the provisioning failing at runtime.
	Misconfigured bool
	Err           error
}

// Report is the full result of a boot run.
type Report struct {
	Outcomes    []Outcome
	Drivers     []DriverResult
	Fingerprint string
	Environment string
	Final       Phase
}

// OK reports whether the sequence completed without a hard failure.
func (r Report) OK() bool {
	return r.Final == PhaseDone
}

// Outcome returns the outcome recorded for phase.
func (r Report) Outcome(p Phase) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Phase == p {
			return o, true
		}
	}
	return Outcome{}, false
}

// Attempted reports whether phase ran at all.
func (r Report) Attempted(p Phase) bool {
	_, ok := r.Outcome(p)
	return ok
}
