package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// GetExplicitFlags reports which flags the operator passed on the command
// line, as opposed to ones left at their default. runDedup uses this to let
// a loaded .nearsift.toml value win over a flag default, while a flag the
// operator actually typed always wins over config.
func GetExplicitFlags(cmd *cobra.Command) map[string]bool {
	if cmd == nil {
		return map[string]bool{}
	}
	set := make(map[string]bool)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		set[f.Name] = true
	})
	return set
}