package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/BaisilG/lego-linux-drivers/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewPositionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "position [percent]",
		Short:   "Get or set the servo position",
		GroupID: gBasic,
		Long: `Get or set the servo position.

Position is a percentage from -100 to 100: -100 is the minimum (counter-clockwise) stop, 0 is the mid position, and 100 is the maximum (clockwise) stop. With no argument, the current position is printed.

The servo only moves while its command is "run". While floating, the position is recorded and applied on the next "run".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				position, err := apiClient.GetPosition(deviceName)
				if err != nil {
					return fmt.Errorf("failed to get position: %v", err)
				}
				cmd.Printf("%d\n", position)
				return nil
			}

			position, err := parseIntArg(args, "position")
			if err != nil {
				return err
			}

			ret, err := apiClient.SetPosition(deviceName, position)
			if err != nil {
				return fmt.Errorf("failed to set position: %v", err)
			}
			if ret != "" {
				logrus.Debugf("daemon responded: %s", ret)
			}

			logrus.Infof("successfully set %s position to %d%%", deviceName, position)

			return nil
		},
	}
}

func NewRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "run",
		Short:   "Drive the servo to its position",
		GroupID: gBasic,
		Long: `Drive the servo to its position.

The servo is powered and driven to the last set position. Use "servoctl float" to remove power again.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.SetCommand(deviceName, "run")
			if err != nil {
				return fmt.Errorf("failed to set command: %v", err)
			}
			if ret != "" {
				logrus.Debugf("daemon responded: %s", ret)
			}

			logrus.Infof("successfully started driving %s", deviceName)

			return nil
		},
	}
}

func NewFloatCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "float",
		Short:   "Remove power from the servo",
		GroupID: gBasic,
		Long: `Remove power from the servo.

The pulse line is stopped so the motor can be moved freely by hand. The logical position is kept and re-applied on the next "run".`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.SetCommand(deviceName, "float")
			if err != nil {
				return fmt.Errorf("failed to set command: %v", err)
			}
			if ret != "" {
				logrus.Debugf("daemon responded: %s", ret)
			}

			logrus.Infof("successfully floated %s", deviceName)

			return nil
		},
	}
}

func NewPolarityCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "polarity",
		Short:   "Get or set the servo polarity",
		GroupID: gBasic,
		Long: `Get or set the servo polarity.

With "inverted" polarity, position 100 corresponds to the minimum pulse width and -100 to the maximum, i.e. the rotation direction is flipped. Useful for servos mounted mirror-image.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			polarity, err := apiClient.GetPolarity(deviceName)
			if err != nil {
				return fmt.Errorf("failed to get polarity: %v", err)
			}
			cmd.Printf("%s\n", polarity)
			return nil
		},
	}

	setPolarity := func(polarity string) error {
		ret, err := apiClient.SetPolarity(deviceName, polarity)
		if err != nil {
			return fmt.Errorf("failed to set polarity: %v", err)
		}
		if ret != "" {
			logrus.Debugf("daemon responded: %s", ret)
		}
		logrus.Infof("successfully set %s polarity to %s", deviceName, polarity)
		return nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "normal",
			Short: "Positive positions rotate clockwise",
			RunE: func(_ *cobra.Command, _ []string) error {
				return setPolarity("normal")
			},
		},
		&cobra.Command{
			Use:   "inverted",
			Short: "Positive positions rotate counter-clockwise",
			RunE: func(_ *cobra.Command, _ []string) error {
				return setPolarity("inverted")
			},
		},
	)

	return cmd
}

func NewDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "devices",
		Short:   "List registered servos",
		GroupID: gBasic,
		RunE: func(cmd *cobra.Command, _ []string) error {
			devices, err := apiClient.ListDevices()
			if err != nil {
				return fmt.Errorf("failed to list devices: %v", err)
			}
			for _, device := range devices {
				cmd.Println(device)
			}
			return nil
		},
	}
}
