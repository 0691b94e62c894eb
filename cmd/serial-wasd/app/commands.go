// Package app provides the serial-wasd command-line application.
package app

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with its subcommands.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "serial-wasd",
		Short:         "Turn W/A/S/D lines from a serial peripheral into virtual key presses",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `serial-wasd reads newline-terminated commands such as "W1" (press W) and
"W0" (release W) from a serial device and replays them on a virtual keyboard
created through /dev/uinput. Heartbeat lines (".") and unknown keys are ignored.

Settings come from flags, SERIAL_WASD_* environment variables and an optional
YAML file, in that order of precedence.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	root.PersistentFlags().Bool("debug", false, "Log every decoded line")

	root.AddCommand(newRunCmd())
	root.AddCommand(newVersionCmd())
	return root
}
