// Command stmdemo runs a handful of worked scenarios against the stm
// package, exercising the library the way an application would: through
// its public constructors and Atomically, never by reaching into internals.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stmdemo",
		Short: "Runs worked scenarios against the stm transactional memory runtime",
	}

	rootCmd.AddCommand(
		newTransferCommand(),
		newRetryWakeCommand(),
		newInvalidateCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
