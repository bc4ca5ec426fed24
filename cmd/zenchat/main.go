package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "zenchat",
		Short:         "ZenRoom chat sync client",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newLoginCmd(), newFollowCmd(), newStubCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
