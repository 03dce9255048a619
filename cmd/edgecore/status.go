package main

import (
	"fmt"
	"os"
	"strconv"

	"edgecore/cmd/edgecore/ui"
	"edgecore/internal/boot"

	"github.com/spf13/cobra"
)

func statusCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show credential, token, broker and device status without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := (*a).orchestrator().Status(cmd.Context())
			fmt.Println()
			fmt.Println(ui.Bold("Cyberwave edge core: status"))
			fmt.Println()
			fmt.Fprint(os.Stdout, renderStatus(st))
			fmt.Println()
			return nil
		},
	}
}

func renderStatus(st boot.StatusReport) string {
	none := ui.Muted("-")
	pairs := []ui.Pair{}

	if st.CredentialsFound {
		pairs = append(pairs, ui.KV("Credentials", ui.Success("found")))
	} else {
		pairs = append(pairs, ui.KV("Credentials", ui.Error("not found")))
	}

	switch st.Token {
	case boot.CheckPassed:
		pairs = append(pairs, ui.KV("Token", ui.Success("valid")))
	case boot.CheckFailed:
		pairs = append(pairs, ui.KV("Token", ui.Error("invalid / unreachable")))
	default:
		pairs = append(pairs, ui.KV("Token", none))
	}

	switch st.Broker {
	case boot.CheckPassed:
		pairs = append(pairs, ui.KV("MQTT", ui.Success("connected")))
	case boot.CheckFailed:
		pairs = append(pairs, ui.KV("MQTT", ui.Error("unreachable")))
	default:
		pairs = append(pairs, ui.KV("MQTT", none))
	}

	if st.Fingerprint != "" {
		pairs = append(pairs, ui.KV("Fingerprint", st.Fingerprint))
	} else {
		pairs = append(pairs, ui.KV("Fingerprint", ui.Muted("not generated yet")))
	}

	switch {
	case st.Linked():
		pairs = append(pairs, ui.KV("Environment", st.Environment))
	case st.LinkErr != nil:
		pairs = append(pairs, ui.KV("Environment", ui.Error("invalid link: "+st.LinkErr.Error())))
	default:
		pairs = append(pairs, ui.KV("Environment", ui.Warn("not linked")))
	}

	switch {
	case st.DevicesErr != nil:
		pairs = append(pairs, ui.KV("Devices", ui.Error(st.DevicesErr.Error())))
	case len(st.Devices) > 0:
		pairs = append(pairs, ui.KV("Devices", ui.Success(strconv.Itoa(len(st.Devices))+" configured")))
	default:
		pairs = append(pairs, ui.KV("Devices", ui.Warn("none")))
	}

	if len(st.Cameras) > 0 {
		pairs = append(pairs, ui.KV("Cameras", ui.Success(strconv.Itoa(len(st.Cameras))+" discovered")))
	} else {
		pairs = append(pairs, ui.KV("Cameras", ui.Warn("none")))
	}
	out := ui.KeyValues("  ", pairs...)
	for _, d := range st.Devices {
		out += fmt.Sprintf("    %s %s @ %s\n", d.Name, ui.Muted("("+d.Slug+")"), d.Port)
	}
	return out
}
