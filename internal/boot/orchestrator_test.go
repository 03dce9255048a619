package boot_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"edgecore/config"
	"edgecore/internal/adapter/fake"
	"edgecore/internal/boot"
	"edgecore/internal/cloud"
	"edgecore/internal/devices"
	"edgecore/internal/driver"
	"edgecore/internal/twin"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const localFP = "linux-0123456789abcdef"

var envID = uuid.MustParse("5a0c1e3f-7b2d-4c8e-9f10-2a3b4c5d6e7f")

type harness struct {
	creds     *fake.Credentials
	cloud     *fake.Cloud
	broker    *fake.Broker
	fp        *fake.Fingerprinter
	link      *fake.Link
	snapshots *fake.Snapshots
	drivers   *fake.Drivers
	devices   *fake.Devices

	cloudBuilt int
}

func newHarness() *harness {
	return &harness{
		creds:     &fake.Credentials{Token: "tok-0123456789abcdef", Overrides: map[string]string{"CYBERWAVE_FOO": "bar"}},
		cloud:     &fake.Cloud{Assets: map[string]twin.Asset{}},
		broker:    &fake.Broker{},
		fp:        &fake.Fingerprinter{Value: localFP},
		link:      &fake.Link{ID: envID},
		snapshots: &fake.Snapshots{},
		drivers:   &fake.Drivers{},
		devices:   &fake.Devices{},
	}
}

func (h *harness) deps() boot.Deps {
	return boot.Deps{
		Credentials: h.creds,
		NewCloud: func(string) boot.Cloud {
			h.cloudBuilt++
			return h.cloud
		},
		NewBroker:   func(string) boot.BrokerProber { return h.broker },
		Fingerprint: h.fp,
		Link:        h.link,
		Snapshots:   h.snapshots,
		Drivers:     h.drivers,
		Devices:     h.devices,
	}
}

func (h *harness) orchestrator(opts ...boot.Option) *boot.Orchestrator {
	settings := boot.Settings{
		CredentialsPath: "/etc/cyberwave/credentials.json",
		EnvironmentPath: "/etc/cyberwave/environment.json",
		APIURL:          "https://api.example.test",
	}
	return boot.New(h.deps(), settings, opts...)
}

func (h *harness) addTwin(t *testing.T, id, fingerprint, assetID string, twinDrivers, assetDrivers map[string]any) {
	t.Helper()

	meta := map[string]any{"edge_fingerprint": fingerprint}
	if twinDrivers != nil {
		meta["drivers"] = twinDrivers
	}
	tw, err := twin.ParseTwin(map[string]any{"uuid": id, "name": "twin-" + id, "asset_uuid": assetID, "metadata": meta})
	if err != nil {
		t.Fatalf("ParseTwin() error = %v", err)
	}
	h.cloud.Twins = append(h.cloud.Twins, tw)

	if assetDrivers == nil {
		return
	}
	a, err := twin.ParseAsset(map[string]any{"uuid": assetID, "metadata": map[string]any{"drivers": assetDrivers}})
	if err != nil {
		t.Fatalf("ParseAsset() error = %v", err)
	}
	h.cloud.Assets[assetID] = a
}

func defaultDriver(image string, params ...any) map[string]any {
	return map[string]any{"default": map[string]any{"docker_image": image, "version": "1.0", "params": params}}
}

func phases(r boot.Report) []boot.Phase {
	out := make([]boot.Phase, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		out = append(out, o.Phase)
	}
	return out
}

func TestRunProvisionsClaimedTwins(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.addTwin(t, "t1", localFP, "a1", nil, defaultDriver("img:1.0", "--x"))
	h.addTwin(t, "t2", "linux-other", "a2", nil, defaultDriver("other:1.0"))

	report := h.orchestrator().Run(context.Background())

	if !report.OK() {
		t.Fatalf("Run() final = %s, outcomes = %+v", report.Final, report.Outcomes)
	}
	if !slices.Equal(phases(report), boot.Steps()) {
		t.Fatalf("phases = %v, want %v", phases(report), boot.Steps())
	}
	for _, o := range report.Outcomes {
		if o.Result != boot.ResultOK {
			t.Errorf("%s result = %s, want ok", o.Phase, o.Result)
		}
	}
	if report.Fingerprint != localFP || report.Environment != envID.String() {
		t.Fatalf("report identity = %q %q", report.Fingerprint, report.Environment)
	}

	started := h.drivers.Started()
	if len(started) != 1 {
		t.Fatalf("drivers started = %d, want 1", len(started))
	}
	want := driver.Request{Image: "img:1.0", Params: []string{"--x"}, TwinUUID: "t1", Token: "tok-0123456789abcdef", EnvOverrides: map[string]string{"CYBERWAVE_FOO": "bar"}}
	got := started[0]
	if got.Image != want.Image || !slices.Equal(got.Params, want.Params) || got.TwinUUID != want.TwinUUID || got.Token != want.Token || got.EnvOverrides["CYBERWAVE_FOO"] != "bar" {
		t.Fatalf("driver request = %+v, want %+v", got, want)
	}

	snap, ok := h.snapshots.Written["t1"]
	if !ok {
		t.Fatal("snapshot for t1 not written")
	}
	if asset, _ := snap["asset"].(map[string]any); asset["uuid"] != "a1" {
		t.Fatalf("snapshot asset = %v", snap["asset"])
	}
	if _, ok := h.snapshots.Written["t2"]; ok {
		t.Fatal("snapshot written for twin of another edge")
	}
	if got := h.cloud.Calls("ListTwins"); len(got) != 1 || got[0].Args[0] != envID.String() {
		t.Fatalf("ListTwins calls = %+v", got)
	}
	if h.cloud.Called("CreateAlert") {
		t.Fatal("alert raised on success")
	}
	if h.cloudBuilt != 1 {
		t.Fatalf("cloud client built %d times, want 1", h.cloudBuilt)
	}
}

func TestRunTokenFailureHaltsSequence(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.cloud.ValidateTokenErr = func(context.Context) error { return errors.New("401 unauthorized") }

	report := h.orchestrator().Run(context.Background())

	if report.OK() || report.Final != boot.PhaseFailed {
		t.Fatalf("Run() final = %s, want failed", report.Final)
	}
	if !slices.Equal(phases(report), []boot.Phase{boot.PhaseLoadCredentials, boot.PhaseValidateToken}) {
		t.Fatalf("phases = %v", phases(report))
	}
	out, _ := report.Outcome(boot.PhaseValidateToken)
	if out.Result != boot.ResultHardFail || out.Hint == "" || !strings.Contains(out.Detail, "https://api.example.test") {
		t.Fatalf("validate outcome = %+v", out)
	}
	if h.broker.Called("Probe") || h.cloud.Called("RegisterEdge") || h.cloud.Called("ListTwins") {
		t.Fatalf("later steps attempted: broker=%v cloud=%v", h.broker.Methods(), h.cloud.Methods())
	}
	if h.link.Called("Load") || len(h.drivers.Started()) != 0 {
		t.Fatal("link or drivers touched after token failure")
	}
}

func TestRunMissingCredentials(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.creds.Token = ""

	report := h.orchestrator().Run(context.Background())

	if report.Final != boot.PhaseFailed || len(report.Outcomes) != 1 {
		t.Fatalf("Run() = %+v", report)
	}
	out := report.Outcomes[0]
	if !errors.Is(out.Err, config.ErrNoToken) || out.Hint == "" {
		t.Fatalf("credentials outcome = %+v", out)
	}
	if h.cloudBuilt != 0 {
		t.Fatal("cloud client built without a token")
	}
}

func TestRunBrokerFailureIsSoft(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.broker.ProbeErr = func(context.Context) error { return errors.New("connection refused") }

	report := h.orchestrator().Run(context.Background())

	if !report.OK() {
		t.Fatalf("Run() final = %s, want done", report.Final)
	}
	out, _ := report.Outcome(boot.PhaseProbeBroker)
	if out.Result != boot.ResultSoftFail || out.Hint == "" {
		t.Fatalf("broker outcome = %+v", out)
	}
	if !h.cloud.Called("RegisterEdge") || !report.Attempted(boot.PhaseFetchAndRunDrivers) {
		t.Fatal("sequence did not continue after broker failure")
	}
}

func TestRunRegisterFailureAborts(t *testing.T) {
	t.Parallel()

	for name, setup := range map[string]func(h *harness){
		"register": func(h *harness) {
			h.cloud.RegisterEdgeErr = func(context.Context, string) error { return errors.New("500") }
		},
		"fingerprint": func(h *harness) {
			h.fp.GetOrCreateErr = func() error { return errors.New("read-only filesystem") }
		},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness()
			setup(h)

			report := h.orchestrator().Run(context.Background())

			if report.Final != boot.PhaseFailed {
				t.Fatalf("Run() final = %s, want failed", report.Final)
			}
			out, _ := report.Outcome(boot.PhaseRegisterEdge)
			if out.Result != boot.ResultHardFail {
				t.Fatalf("register outcome = %+v", out)
			}
			if h.link.Called("Load") || report.Attempted(boot.PhaseLoadEnvironmentLink) {
				t.Fatal("environment link loaded after failed registration")
			}
		})
	}
}

func TestRunWithoutLinkSkipsDrivers(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.link.ID = uuid.Nil

	report := h.orchestrator().Run(context.Background())

	if !report.OK() {
		t.Fatalf("Run() final = %s, want done", report.Final)
	}
	out, _ := report.Outcome(boot.PhaseLoadEnvironmentLink)
	if out.Result != boot.ResultNone || !strings.Contains(out.Detail, "environment.json") {
		t.Fatalf("link outcome = %+v", out)
	}
	if report.Attempted(boot.PhaseFetchAndRunDrivers) || h.cloud.Called("ListTwins") {
		t.Fatal("drivers fetched without an environment link")
	}
}

func TestRunInvalidLinkIsSoft(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.link.LoadErr = func(context.Context) error { return errors.New("invalid uuid") }

	report := h.orchestrator().Run(context.Background())

	out, _ := report.Outcome(boot.PhaseLoadEnvironmentLink)
	if !report.OK() || out.Result != boot.ResultSoftFail {
		t.Fatalf("Run() final = %s, link outcome = %+v", report.Final, out)
	}
}

func TestRunIsolatesPerTwinFailures(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.addTwin(t, "t1", localFP, "a1", nil, map[string]any{"mac": map[string]any{"docker_image": "mac-img"}})
	h.addTwin(t, "t2", localFP, "a-missing", nil, nil)
	h.addTwin(t, "t3", localFP, "a3", defaultDriver("twin-img:2"), defaultDriver("asset-img:1"))
	h.addTwin(t, "t4", localFP, "a4", nil, defaultDriver("broken:1"))
	h.drivers.RunResult = func(req driver.Request) bool { return req.TwinUUID != "t4" }

	report := h.orchestrator().Run(context.Background())

	if !report.OK() {
		t.Fatalf("Run() final = %s, want done", report.Final)
	}
	out, _ := report.Outcome(boot.PhaseFetchAndRunDrivers)
	if out.Result != boot.ResultSoftFail || out.Detail != "1/4 driver(s) started" {
		t.Fatalf("drivers outcome = %+v", out)
	}

	byTwin := map[string]boot.DriverResult{}
	for _, d := range report.Drivers {
		byTwin[d.Twin.UUID] = d
	}
	if d := byTwin["t1"]; !d.Misconfigured || !errors.Is(d.Err, twin.ErrNoDefaultDriver) {
		t.Fatalf("t1 result = %+v", d)
	}
	if d := byTwin["t2"]; d.Misconfigured || d.Err == nil {
		t.Fatalf("t2 result = %+v", d)
	}
	if d := byTwin["t3"]; !d.Started || d.Image != "twin-img:2" {
		t.Fatalf("t3 result = %+v", d)
	}
	if d := byTwin["t4"]; d.Started || d.Err == nil {
		t.Fatalf("t4 result = %+v", d)
	}

	alerts := h.cloud.RaisedAlerts()
	if len(alerts) != 3 {
		t.Fatalf("alerts = %d, want 3", len(alerts))
	}
	types := map[string]string{}
	for _, a := range alerts {
		types[a.TwinUUID] = a.AlertType
	}
	if types["t1"] != "driver_misconfigured" || types["t4"] != "driver_start_failed" {
		t.Fatalf("alert types = %v", types)
	}
}

func TestRunAlertsDisabledAndAlertErrorsIgnored(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.addTwin(t, "t1", localFP, "a1", nil, map[string]any{})
	settings := boot.Settings{DisableAlerts: true}
	report := boot.New(h.deps(), settings).Run(context.Background())
	if !report.OK() || h.cloud.Called("CreateAlert") {
		t.Fatalf("alerts raised while disabled: %v", h.cloud.Methods())
	}

	h = newHarness()
	h.addTwin(t, "t1", localFP, "a1", nil, map[string]any{})
	h.cloud.CreateAlertErr = func(context.Context, cloud.Alert) error { return errors.New("503") }
	if report := h.orchestrator().Run(context.Background()); !report.OK() {
		t.Fatal("alert failure changed the boot result")
	}
}

func TestRunReportsEachStep(t *testing.T) {
	t.Parallel()

	h := newHarness()
	var seen []boot.Phase
	h.orchestrator(boot.WithReporter(func(o boot.Outcome) { seen = append(seen, o.Phase) })).Run(context.Background())

	// No twins assigned: the driver step reports NONE.
	if !slices.Equal(seen, boot.Steps()) {
		t.Fatalf("reported phases = %v", seen)
	}
}

func TestRunNoMatchingTwinsIsNone(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.addTwin(t, "t1", "linux-other", "a1", nil, defaultDriver("img"))

	report := h.orchestrator().Run(context.Background())

	out, _ := report.Outcome(boot.PhaseFetchAndRunDrivers)
	if !report.OK() || out.Result != boot.ResultNone {
		t.Fatalf("drivers outcome = %+v", out)
	}
}

func TestRunRecordsSpans(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("boot-test")

	h := newHarness()
	h.broker.ProbeErr = func(context.Context) error { return errors.New("refused") }
	h.cloud.RegisterEdgeErr = func(context.Context, string) error { return errors.New("500") }
	h.orchestrator(boot.WithTracer(tracer)).Run(context.Background())

	spans := recorder.Ended()
	byName := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range spans {
		byName[s.Name()] = s
	}
	if len(spans) != 5 {
		t.Fatalf("ended spans = %d, want 5 (root + 4 steps)", len(spans))
	}
	if s := byName["probe_broker"]; s == nil || s.Status().Code == codes.Error {
		t.Fatal("soft broker failure should not mark the span as error")
	}
	if s := byName["register_edge"]; s == nil || s.Status().Code != codes.Error {
		t.Fatal("hard failure should mark the register span as error")
	}
	if s := byName["edge.boot"]; s == nil || s.Status().Code != codes.Error {
		t.Fatal("root span should carry the hard failure")
	}
}

func TestStatusIsReadOnly(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.devices.List = []devices.Device{{Slug: "so101", Name: "Arm", Port: "/dev/ttyACM0"}}
	h.devices.CameraList = []devices.Camera{{Card: "C920", Paths: []string{"/dev/video0"}}}

	st := h.orchestrator().Status(context.Background())

	if !st.CredentialsFound || st.Token != boot.CheckPassed || st.Broker != boot.CheckPassed {
		t.Fatalf("Status() = %+v", st)
	}
	if st.Fingerprint != "" {
		t.Fatalf("Status() fingerprint = %q, want empty before first boot", st.Fingerprint)
	}
	if !st.Linked() || st.Environment != envID.String() {
		t.Fatalf("Status() environment = %q", st.Environment)
	}
	if len(st.Devices) != 1 || len(st.Cameras) != 1 {
		t.Fatalf("Status() devices = %v cameras = %v", st.Devices, st.Cameras)
	}
	if h.fp.Called("GetOrCreate") || h.cloud.Called("RegisterEdge") || h.cloud.Called("ListTwins") {
		t.Fatalf("Status() mutated state: fp=%v cloud=%v", h.fp.Methods(), h.cloud.Methods())
	}
	if len(h.drivers.Started()) != 0 || h.snapshots.Called("Write") {
		t.Fatal("Status() started drivers or wrote snapshots")
	}
}

func TestStatusStopsAtInvalidToken(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.cloud.ValidateTokenErr = func(context.Context) error { return errors.New("401") }

	st := h.orchestrator().Status(context.Background())

	if st.Token != boot.CheckFailed || st.Broker != boot.CheckSkipped || h.broker.Called("Probe") {
		t.Fatalf("Status() = %+v", st)
	}

	h = newHarness()
	h.creds.Token = ""
	st = h.orchestrator().Status(context.Background())
	if st.CredentialsFound || st.Token != boot.CheckSkipped || h.cloudBuilt != 0 {
		t.Fatalf("Status() without credentials = %+v", st)
	}
}
