package main

import (
	"errors"
	"fmt"
	"os"

	"edgecore/internal/logging"

	"github.com/spf13/cobra"
)

var version = "dev"

// errBootFailed is returned when the boot sequence hit a hard failure. The
// report has already been printed.
var errBootFailed = errors.New("startup checks failed")

func main() {
	var (
		debug     bool
		noColor   bool
		configDir string
		noFollow  bool
		a         *app
	)
	if err := logging.Configure(logging.LevelInfo); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "edgecore",
		Short:         "Boot the Cyberwave edge and run the drivers of its twins",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			var err error
			a, err = newApp(configDir, debug, noColor)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBoot(cmd.Context(), a, !noFollow)
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	root.PersistentFlags().StringVar(&configDir, "config-dir", "", "Edge config directory (default $CYBERWAVE_EDGE_CONFIG_DIR or /etc/cyberwave)")
	root.Flags().BoolVar(&noFollow, "no-follow", false, "Exit after the startup checks instead of forwarding driver logs")

	root.AddCommand(statusCmd(&a))
	root.AddCommand(devicesCmd(&a))

	err := execute(root, func() {
		if a != nil {
			a.Close()
		}
	})
	if err != nil {
		if !errors.Is(err, errBootFailed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// execute runs root and always calls closeApp afterwards, including when
// RunE fails.
func execute(root *cobra.Command, closeApp func()) error {
	defer closeApp()
	return root.Execute()
}
