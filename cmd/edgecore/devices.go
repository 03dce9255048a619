package main

import (
	"errors"
	"fmt"

	"edgecore/cmd/edgecore/ui"
	"edgecore/internal/devices"

	"github.com/spf13/cobra"
)

func devicesCmd(a **app) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Discover cameras and serial ports attached to this edge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := devices.NewScanner()
			cams, err := s.DiscoverCameras(cmd.Context())
			if err != nil && !errors.Is(err, devices.ErrUnsupported) {
				fmt.Println(ui.WarnMsg("Camera discovery failed: %v", err))
			}
			printCameras(cams)

			ports := s.ListSerialPorts()
			fmt.Println()
			if len(ports) == 0 {
				fmt.Println(ui.WarnMsg("No serial ports found."))
			} else {
				for _, p := range ports {
					fmt.Println("  " + p)
				}
			}

			if !write {
				return nil
			}
			path, err := devices.WriteCameras((*a).paths.Dir, cams)
			if err != nil {
				return err
			}
			fmt.Println()
			fmt.Println(ui.SuccessMsg("Wrote %d camera(s) to %s", len(cams), path))
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "Persist discovered cameras to cameras.json")
	return cmd
}

func printCameras(cams []devices.Camera) {
	if len(cams) == 0 {
		fmt.Println(ui.WarnMsg("No cameras found."))
		return
	}
	rows := make([][]string, 0, len(cams))
	for _, c := range cams {
		rows = append(rows, []string{c.Card, c.PrimaryPath(), c.BusInfo, c.Driver, c.Serial})
	}
	fmt.Println(ui.Table([]string{"CARD", "PATH", "BUS", "DRIVER", "SERIAL"}, rows))
}
