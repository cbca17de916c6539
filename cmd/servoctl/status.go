package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var bold = color.New(color.Bold).SprintFunc()

func commandText(command string) string {
	switch command {
	case "run":
		return color.GreenString("run")
	case "float":
		return color.YellowString("float")
	}
	return command
}

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of a servo",
		Long:    `Get the servo's identity, position, command, polarity, and calibration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := apiClient.GetStatus(deviceName)
			if err != nil {
				return fmt.Errorf("failed to get status: %v", err)
			}

			cmd.Println(bold(status.Device) + " (" + status.Driver + " on " + status.PortName + ")")

			cmd.Println(bold("State:"))
			cmd.Printf("  Command: %s\n", commandText(status.Command))
			if status.Command == "float" {
				cmd.Println("    The motor is unpowered and can be moved by hand.")
			}
			cmd.Printf("  Position: %d%%\n", status.Position)
			cmd.Printf("  Polarity: %s\n", status.Polarity)

			cmd.Println(bold("Calibration:"))
			cmd.Printf("  Pulse widths (min/mid/max): %d/%d/%d ms\n",
				status.MinPulseMs, status.MidPulseMs, status.MaxPulseMs)
			if status.RateMs != nil {
				cmd.Printf("  Rate: %d ms\n", *status.RateMs)
			} else {
				cmd.Println("  Rate: not supported by this controller")
			}

			return nil
		},
	}
}
