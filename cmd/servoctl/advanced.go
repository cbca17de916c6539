package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewPulseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pulse",
		Short:   "Get or set the pulse width calibration",
		GroupID: gAdvanced,
		Long: `Get or set the pulse width calibration.

The min, mid, and max pulse widths (in milliseconds) are the raw signals for the -100%, 0%, and 100% positions. Legal ranges are 300-700, 1300-1700, and 2300-2700. A calibration change takes effect on the next position write.`,
	}

	cmd.AddCommand(
		newPulseAttrCommand("min", "minimum (counter-clockwise) stop",
			apiClient.GetMinPulseMs, apiClient.SetMinPulseMs),
		newPulseAttrCommand("mid", "mid (neutral) position",
			apiClient.GetMidPulseMs, apiClient.SetMidPulseMs),
		newPulseAttrCommand("max", "maximum (clockwise) stop",
			apiClient.GetMaxPulseMs, apiClient.SetMaxPulseMs),
	)

	return cmd
}

func newPulseAttrCommand(
	use, short string,
	getFunc func(string) (int, error),
	setFunc func(string, int) (string, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [ms]",
		Short: "Pulse width for the " + short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				v, err := getFunc(deviceName)
				if err != nil {
					return fmt.Errorf("failed to get %s pulse width: %v", use, err)
				}
				cmd.Printf("%d\n", v)
				return nil
			}

			v, err := parseIntArg(args, "pulse width")
			if err != nil {
				return err
			}

			ret, err := setFunc(deviceName, v)
			if err != nil {
				return fmt.Errorf("failed to set %s pulse width: %v", use, err)
			}
			if ret != "" {
				logrus.Debugf("daemon responded: %s", ret)
			}

			logrus.Infof("successfully set %s %s pulse width to %d ms", deviceName, use, v)

			return nil
		},
	}
}

func NewRateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rate [ms]",
		Short:   "Get or set the travel rate",
		GroupID: gAdvanced,
		Long: `Get or set the travel rate.

The rate is the time in milliseconds the servo takes to travel from 0 to 100% (half of its full range). 0 means unlimited. Not every controller supports rate control; those that don't will report the attribute as unsupported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				rate, err := apiClient.GetRate(deviceName)
				if err != nil {
					return fmt.Errorf("failed to get rate: %v", err)
				}
				cmd.Printf("%d\n", rate)
				return nil
			}

			rate, err := parseIntArg(args, "rate")
			if err != nil {
				return err
			}

			ret, err := apiClient.SetRate(deviceName, rate)
			if err != nil {
				return fmt.Errorf("failed to set rate: %v", err)
			}
			if ret != "" {
				logrus.Debugf("daemon responded: %s", ret)
			}

			logrus.Infof("successfully set %s rate to %d ms", deviceName, rate)

			return nil
		},
	}
}
