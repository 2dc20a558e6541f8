package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seantiz/mori/internal/backend"
)

// NewBackendsCommand creates the backends command.
func NewBackendsCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "backends",
		Short:         "List backend path schemes and the compiled-in engine",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if name, ok := backend.Integrated(); ok {
				fmt.Fprintf(out, "integrated engine: %s\n", name)
			} else {
				fmt.Fprintln(out, "integrated engine: none")
			}
			for _, s := range backend.Schemes() {
				state := "reserved"
				if s.Supported {
					state = "supported"
				} else if s.Kind != "" {
					state = "unavailable"
				}
				fmt.Fprintf(out, "%-10s %s\n", s.Scheme, state)
			}
			return nil
		},
	}
}
