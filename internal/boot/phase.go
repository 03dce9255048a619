package boot

import "edgecore/internal/check"

// Phase is a state of the boot sequence.
type Phase uint8

const (
	PhaseLoadCredentials Phase = iota + 1
	PhaseValidateToken
	PhaseProbeBroker
	PhaseRegisterEdge
	PhaseLoadEnvironmentLink
	PhaseFetchAndRunDrivers
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseLoadCredentials:
		return "load_credentials"
	case PhaseValidateToken:
		return "validate_token"
	case PhaseProbeBroker:
		return "probe_broker"
	case PhaseRegisterEdge:
		return "register_edge"
	case PhaseLoadEnvironmentLink:
		return "load_environment_link"
	case PhaseFetchAndRunDrivers:
		return "fetch_and_run_drivers"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Title is the human label printed for the step.
func (p Phase) Title() string {
	switch p {
	case PhaseLoadCredentials:
		return "Checking credentials"
	case PhaseValidateToken:
		return "Validating token"
	case PhaseProbeBroker:
		return "Connecting to MQTT"
	case PhaseRegisterEdge:
		return "Registering edge"
	case PhaseLoadEnvironmentLink:
		return "Checking environment"
	case PhaseFetchAndRunDrivers:
		return "Fetching twin drivers"
	default:
		return p.String()
	}
}

func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Transition moves to the next phase. Steps run strictly in order; a hard
// failure jumps to Failed and the link step may skip straight to Done.
func (p Phase) Transition(to Phase) Phase {
	ok := false
	switch p {
	case PhaseLoadCredentials:
		ok = to == PhaseValidateToken || to == PhaseFailed
	case PhaseValidateToken:
		ok = to == PhaseProbeBroker || to == PhaseFailed
	case PhaseProbeBroker:
		ok = to == PhaseRegisterEdge
	case PhaseRegisterEdge:
		ok = to == PhaseLoadEnvironmentLink || to == PhaseFailed
	case PhaseLoadEnvironmentLink:
		ok = to == PhaseFetchAndRunDrivers || to == PhaseDone
	case PhaseFetchAndRunDrivers:
		ok = to == PhaseDone
	case PhaseDone, PhaseFailed:
		ok = false
	}
	check.Assertf(ok, "boot phase transition: %s -> %s", p, to)
	if !ok {
		return p
	}
	return to
}

// Steps lists the executable phases in order.
func Steps() []Phase {
	return []Phase{
		PhaseLoadCredentials,
		PhaseValidateToken,
		PhaseProbeBroker,
		PhaseRegisterEdge,
		PhaseLoadEnvironmentLink,
		PhaseFetchAndRunDrivers,
	}
}
