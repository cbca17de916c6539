package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/BaisilG/lego-linux-drivers/pkg/client"
)

var (
	logLevel       = "info"
	unixSocketPath = "/var/run/servoctl.sock"
	configPath     = "/etc/servoctl.json"
	deviceName     = "motor0"
)

var (
	gBasic        = "Basic:"
	gAdvanced     = "Advanced:"
	commandGroups = []string{
		gBasic,
		gAdvanced,
	}
)

var apiClient = client.NewClient(unixSocketPath)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	if errors.Is(err, client.ErrDaemonNotRunning) {
		fmt.Fprintln(os.Stderr, "\nError: servoctl daemon is not running")
		fmt.Fprintln(os.Stderr, "Is the daemon running? Have you installed it?")
	} else if errors.Is(err, client.ErrPermissionDenied) {
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - Try running the command again with 'sudo'")
		fmt.Fprintln(os.Stderr, "  - Or run the daemon with the '--always-allow-non-root-access' flag to grant permissions to your user")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "servoctl",
		Short:        "servoctl is a tool to control hobby servo motors",
		SilenceUsage: true,
		Long: `servoctl is a tool to control hobby servo motors.

It drives a servo controller (a Pololu Maestro over serial, or a Linux
sysfs PWM channel) through a small daemon, exposing position, polarity,
command, and pulse calibration as attributes.`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogger()
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path")
	globalFlags.StringVar(&unixSocketPath, "daemon-socket", unixSocketPath, "servoctl daemon unix socket path")
	globalFlags.StringVarP(&deviceName, "device", "d", deviceName, "device to control")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewDaemonCommand(),
		NewVersionCommand(),
		NewPositionCommand(),
		NewRunCommand(),
		NewFloatCommand(),
		NewPolarityCommand(),
		NewPulseCommand(),
		NewRateCommand(),
		NewStatusCommand(),
		NewDevicesCommand(),
	)

	return cmd
}
