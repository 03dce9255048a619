// Package boot runs the edge startup sequence: credentials, token check,
// broker probe, edge registration, environment link and driver
// provisioning for every twin assigned to this edge.
package boot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"edgecore/config"
	"edgecore/internal/cloud"
	"edgecore/internal/driver"
	"edgecore/internal/link"
	"edgecore/internal/telemetry"
	"edgecore/internal/twin"

	"go.opentelemetry.io/otel/trace"
)

const operationName = "edge.boot"

const (
	hintLogin        = "Run 'cyberwave login' on this device first."
	hintRelogin      = "Run 'cyberwave login' to refresh your credentials."
	hintBroker       = "Check network connectivity and MQTT configuration."
	hintLinkFormat   = `Expected format: {"uuid": "<environment uuid>"}`
	hintNoTwins      = "No twins with driver images matched this edge."
	hintDriverFailed = "Check the driver logs and the twin driver configuration."
)

const (
	alertTypeMisconfigured = "driver_misconfigured"
	alertTypeStartFailed   = "driver_start_failed"
	alertSeverity          = "error"
)

// Settings carries the values the sequence reports back to operators.
type Settings struct {
	CredentialsPath string
	EnvironmentPath string
	APIURL          string
	// DisableAlerts stops raising remote alerts for twins whose driver
	// could not be provisioned.
	DisableAlerts bool
}

// Orchestrator sequences the boot steps as a state machine.
type Orchestrator struct {
	deps     Deps
	settings Settings
	tracer   trace.Tracer
	reporter func(Outcome)
	log      *slog.Logger
}

type Option func(*Orchestrator)

// WithReporter registers fn to receive each outcome as soon as the step ends.
func WithReporter(fn func(Outcome)) Option {
	return func(o *Orchestrator) { o.reporter = fn }
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

func New(deps Deps, settings Settings, opts ...Option) *Orchestrator {
	if deps.Selector == nil {
		deps.Selector = twin.DefaultSelector{}
	}
	o := &Orchestrator{
		deps:     deps,
		settings: settings,
		tracer:   telemetry.Tracer(),
		log:      slog.With("component", "boot"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run is the state carried between steps of one boot.
type run struct {
	report    Report
	token     string
	overrides map[string]string
	cloud     Cloud
	envUUID   string
}

// Run executes the boot sequence once. It never returns early on soft
// failures; the first hard failure ends the sequence in PhaseFailed.
func (o *Orchestrator) Run(ctx context.Context) Report {
	stepIDs := make([]string, 0, len(Steps()))
	for _, p := range Steps() {
		stepIDs = append(stepIDs, p.String())
	}
	base := ctx
	op, err := telemetry.Begin(ctx, o.tracer, operationName, stepIDs)
	if err != nil {
		o.log.Warn("Boot tracing disabled.", "err", err)
	} else {
		base = op.Context()
	}

	r := &run{}
	phase := PhaseLoadCredentials
	var hardErr error
	for !phase.IsTerminal() {
		stepCtx, span := op.StartStep(base, phase.String())
		out, next := o.step(stepCtx, r, phase)
		out.Phase = phase
		span.Finish(out.Result.String(), out.Detail, out.Err, out.Result == ResultHardFail)

		o.record(r, out)
		if out.Result == ResultHardFail {
			hardErr = fmt.Errorf("%s: %w", phase, out.Err)
		}
		phase = phase.Transition(next)
	}
	r.report.Final = phase

	op.End(hardErr)
	if phase == PhaseDone {
		o.log.Info("Boot sequence completed.", "drivers", len(r.report.Drivers))
	} else {
		o.log.Error("Boot sequence aborted.", "err", hardErr)
	}
	return r.report
}

func (o *Orchestrator) step(ctx context.Context, r *run, p Phase) (Outcome, Phase) {
	switch p {
	case PhaseLoadCredentials:
		return o.loadCredentials(r)
	case PhaseValidateToken:
		return o.validateToken(ctx, r)
	case PhaseProbeBroker:
		return o.probeBroker(ctx, r)
	case PhaseRegisterEdge:
		return o.registerEdge(ctx, r)
	case PhaseLoadEnvironmentLink:
		return o.loadEnvironmentLink(ctx, r)
	case PhaseFetchAndRunDrivers:
		return o.fetchAndRunDrivers(ctx, r)
	default:
		return Outcome{Result: ResultHardFail, Err: fmt.Errorf("unexpected phase %s", p)}, PhaseFailed
	}
}

func (o *Orchestrator) record(r *run, out Outcome) {
	r.report.Outcomes = append(r.report.Outcomes, out)

	attrs := []any{"step", out.Phase.String(), "result", out.Result.String()}
	if out.Detail != "" {
		attrs = append(attrs, "detail", out.Detail)
	}
	switch out.Result {
	case ResultHardFail:
		o.log.Error("Boot step failed.", append(attrs, "err", out.Err)...)
	case ResultSoftFail:
		o.log.Warn("Boot step failed, continuing.", append(attrs, "err", out.Err)...)
	default:
		o.log.Info("Boot step finished.", attrs...)
	}
	if o.reporter != nil {
		o.reporter(out)
	}
}

func (o *Orchestrator) loadCredentials(r *run) (Outcome, Phase) {
	token, ok := o.deps.Credentials.LoadToken()
	if !ok {
		return Outcome{
			Result: ResultHardFail,
			Detail: fmt.Sprintf("no credentials found at %s", o.settings.CredentialsPath),
			Err:    config.ErrNoToken,
			Hint:   hintLogin,
		}, PhaseFailed
	}
	r.token = token
	r.overrides = o.deps.Credentials.LoadEnvOverrides()
	r.cloud = o.deps.NewCloud(token)
	return Outcome{Result: ResultOK}, PhaseValidateToken
}

func (o *Orchestrator) validateToken(ctx context.Context, r *run) (Outcome, Phase) {
	if err := r.cloud.ValidateToken(ctx); err != nil {
		return Outcome{
			Result: ResultHardFail,
			Detail: fmt.Sprintf("token validation failed against %s", o.settings.APIURL),
			Err:    err,
			Hint:   hintRelogin,
		}, PhaseFailed
	}
	return Outcome{Result: ResultOK}, PhaseProbeBroker
}

func (o *Orchestrator) probeBroker(ctx context.Context, r *run) (Outcome, Phase) {
	if o.deps.NewBroker == nil {
		return Outcome{Result: ResultNone, Detail: "no broker configured"}, PhaseRegisterEdge
	}
	if err := o.deps.NewBroker(r.token).Probe(ctx); err != nil {
		return Outcome{
			Result: ResultSoftFail,
			Detail: "could not connect to the MQTT broker",
			Err:    err,
			Hint:   hintBroker,
		}, PhaseRegisterEdge
	}
	return Outcome{Result: ResultOK}, PhaseRegisterEdge
}

func (o *Orchestrator) registerEdge(ctx context.Context, r *run) (Outcome, Phase) {
	fp, err := o.deps.Fingerprint.GetOrCreate()
	if err != nil {
		return Outcome{
			Result: ResultHardFail,
			Detail: "could not determine edge fingerprint",
			Err:    err,
		}, PhaseFailed
	}
	r.report.Fingerprint = fp

	if err := r.cloud.RegisterEdge(ctx, fp); err != nil {
		return Outcome{
			Result: ResultHardFail,
			Detail: "could not register the edge",
			Err:    err,
		}, PhaseFailed
	}
	return Outcome{Result: ResultOK, Detail: fp}, PhaseLoadEnvironmentLink
}

func (o *Orchestrator) loadEnvironmentLink(ctx context.Context, r *run) (Outcome, Phase) {
	id, err := o.deps.Link.Load(ctx)
	if err != nil {
		out := Outcome{
			Result: ResultSoftFail,
			Detail: fmt.Sprintf("invalid environment link in %s", o.settings.EnvironmentPath),
			Err:    err,
			Hint:   hintLinkFormat,
		}
		if errors.Is(err, link.ErrNotLinked) {
			out.Result = ResultNone
			out.Detail = fmt.Sprintf("no linked environment found in %s", o.settings.EnvironmentPath)
		}
		return out, PhaseDone
	}
	r.envUUID = id.String()
	r.report.Environment = r.envUUID
	return Outcome{Result: ResultOK, Detail: r.envUUID}, PhaseFetchAndRunDrivers
}

// fetchAndRunDrivers provisions every twin assigned to this edge. Failures
// are isolated per twin; the step only fails as a whole when the twins
// cannot be listed or the fingerprint is unavailable.
func (o *Orchestrator) fetchAndRunDrivers(ctx context.Context, r *run) (Outcome, Phase) {
	fp := r.report.Fingerprint
	if fp == "" {
		var err error
		if fp, err = o.deps.Fingerprint.GetOrCreate(); err != nil {
			return Outcome{Result: ResultSoftFail, Detail: "could not determine edge fingerprint", Err: err}, PhaseDone
		}
	}

	twins, err := r.cloud.ListTwins(ctx, r.envUUID)
	if err != nil {
		return Outcome{Result: ResultSoftFail, Detail: "could not list twins", Err: err}, PhaseDone
	}

	matcher := twin.NewMatcher(r.cloud, o.deps.Selector)
	assigned, failures := matcher.MatchAndResolve(ctx, twins, fp)

	for _, f := range failures {
		res := DriverResult{Twin: f.Twin, Misconfigured: f.Misconfigured(), Err: f.Err}
		o.alert(ctx, r.cloud, res)
		r.report.Drivers = append(r.report.Drivers, res)
	}
	for _, a := range assigned {
		res := o.provision(ctx, r, a)
		if !res.Started {
			o.alert(ctx, r.cloud, res)
		}
		r.report.Drivers = append(r.report.Drivers, res)
	}

	total := len(r.report.Drivers)
	if total == 0 {
		return Outcome{Result: ResultNone, Detail: hintNoTwins}, PhaseDone
	}
	started := 0
	for _, d := range r.report.Drivers {
		if d.Started {
			started++
		}
	}
	out := Outcome{Result: ResultOK, Detail: fmt.Sprintf("%d/%d driver(s) started", started, total)}
	if started < total {
		out.Result = ResultSoftFail
		out.Err = fmt.Errorf("%d driver(s) failed", total-started)
		out.Hint = hintDriverFailed
	}
	return out, PhaseDone
}

func (o *Orchestrator) provision(ctx context.Context, r *run, a twin.Assignment) DriverResult {
	res := DriverResult{Twin: a.Twin, Image: a.Driver.Image}

	// The driver still starts without a snapshot; the mount is skipped.
	if err := o.deps.Snapshots.Write(a.Twin.UUID, a.Twin.Raw, a.Asset.Raw); err != nil {
		o.log.Warn("Failed to write twin snapshot.", "twin_uuid", a.Twin.UUID, "err", err)
	}

	o.log.Info("Running driver for twin.", "twin", a.Twin.DisplayName(), "image", a.Driver.Image)
	res.Started = o.deps.Drivers.Run(ctx, driver.Request{
		Image:        a.Driver.Image,
		Params:       a.Driver.Params,
		TwinUUID:     a.Twin.UUID,
		Token:        r.token,
		EnvOverrides: r.overrides,
	})
	if !res.Started {
		res.Err = fmt.Errorf("driver %s did not start", a.Driver.Image)
	}
	return res
}

func (o *Orchestrator) alert(ctx context.Context, c Cloud, res DriverResult) {
	if o.settings.DisableAlerts {
		return
	}
	a := cloud.Alert{
		TwinUUID:    res.Twin.UUID,
		Name:        "Driver failed to start",
		Description: fmt.Sprintf("Edge could not start a driver for twin %s: %v", res.Twin.DisplayName(), res.Err),
		Severity:    alertSeverity,
		AlertType:   alertTypeStartFailed,
	}
	if res.Misconfigured {
		a.Name = "Driver misconfigured"
		a.AlertType = alertTypeMisconfigured
	}
	if err := c.CreateAlert(ctx, a); err != nil {
		o.log.Warn("Failed to raise alert.", "twin_uuid", res.Twin.UUID, "err", err)
	}
}
