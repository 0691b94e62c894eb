package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is overridable at link time:
//
//	go build -ldflags "-X github.com/luhtfiimanal/serial-wasd/cmd/serial-wasd/app.version=1.1.0"
var version = "dev" //nolint:gochecknoglobals

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "serial-wasd %s\n", version)
		},
	}
}
