package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"edgecore/cmd/edgecore/ui"
	"edgecore/internal/boot"
)

const titleWidth = 24

func runBoot(ctx context.Context, a *app, follow bool) error {
	w := os.Stdout
	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.Bold("Cyberwave edge core: startup checks"))
	fmt.Fprintln(w)
	fmt.Fprint(w, ui.KeyValues("  ",
		ui.KV("Config dir", a.paths.Dir),
		ui.KV("API URL", a.resolver.APIURL()),
		ui.KV("Environment", a.resolver.Tier()),
	))
	fmt.Fprintln(w)

	orch := a.orchestrator(boot.WithReporter(func(o boot.Outcome) { printOutcome(w, o) }))
	report := orch.Run(ctx)
	printDrivers(w, report.Drivers)

	if !report.OK() {
		fmt.Fprintln(w)
		fmt.Fprintln(w, ui.ErrorMsg("Startup checks failed."))
		return errBootFailed
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.SuccessMsg("All startup checks passed."))

	logs := a.drivers.Logs()
	if !follow || logs == nil || logs.Running() == 0 {
		return nil
	}
	fmt.Fprintln(w, ui.Muted("  Forwarding driver logs, press Ctrl+C to stop."))
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := logs.Wait(sigCtx); err != nil && sigCtx.Err() == nil {
		return err
	}
	return nil
}

func printOutcome(w io.Writer, o boot.Outcome) {
	detail := o.Detail
	if o.Result.Failed() || o.Result == boot.ResultNone {
		detail = ""
	}
	fmt.Fprintln(w, ui.StepLine(o.Phase.Title(), titleWidth, o.Result.Label(), detail))

	if o.Result == boot.ResultOK {
		return
	}
	if o.Detail != "" {
		msg := o.Detail
		if o.Err != nil {
			msg += ": " + o.Err.Error()
		}
		if o.Result == boot.ResultNone {
			fmt.Fprintln(w, "    "+ui.Warn(msg))
		} else {
			fmt.Fprintln(w, "    "+ui.Error(msg))
		}
	}
	if o.Hint != "" {
		fmt.Fprintln(w, "    "+ui.Muted(o.Hint))
	}
}

func printDrivers(w io.Writer, results []boot.DriverResult) {
	for _, d := range results {
		status := "OK"
		if !d.Started {
			status = "FAIL"
		}
		image := d.Image
		if image == "" {
			image = "-"
		}
		fmt.Fprintf(w, "    %s → %s %s\n", d.Twin.DisplayName(), image, ui.Status(status))
		if d.Err != nil {
			fmt.Fprintln(w, "      "+ui.Muted(d.Err.Error()))
		}
	}
}
