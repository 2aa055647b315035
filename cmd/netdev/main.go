package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zxhio/netdev/cmd/netdev/bench"
	"github.com/zxhio/netdev/cmd/netdev/local"
	"github.com/zxhio/netdev/cmd/netdev/session"
	"github.com/zxhio/netdev/pkg/builder"
	"github.com/zxhio/netdev/pkg/utils"
)

var (
	verbose bool
	version bool
)

const logoAscii = `
           |     |
 |\ /_)_|_/|/_)\/
 | |\_  | \|\_  \/`

var rootCmd = &cobra.Command{
	Use:   "netdev",
	Short: "netdev command line tool\n\n" + color.HiBlueString(logoAscii),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		utils.SetVerbose(verbose)
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		} else {
			logrus.SetLevel(logrus.WarnLevel)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		if version {
			fmt.Println(builder.BuildInfo())
			os.Exit(0)
		}
		cmd.Help()
	},
}

func main() {
	cobra.EnableTraverseRunHooks = true
	local.Export(rootCmd)
	session.Export(rootCmd)
	bench.Export(rootCmd)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.Flags().BoolVarP(&version, "version", "V", false, "Print version")
	rootCmd.Execute()
}
