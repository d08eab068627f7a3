// Command trustcli validates a PEM-encoded certificate chain against a
// trust anchor bundle, consulting CRLs for revocation status.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if err != errUntrustedChain {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "trustcli",
		Short:         "Validate X.509 certificate chains against a trust anchor store",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(newVerifyCmd())
	return root
}
