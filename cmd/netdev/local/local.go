// Package local holds the commands that drive NICs on this host directly,
// without the netdevd daemon.
package local

import (
	"github.com/spf13/cobra"
	"github.com/zxhio/netdev/cmd/netdev/util"
	"github.com/zxhio/netdev/pkg/arp"
	"github.com/zxhio/netdev/pkg/capture"
)

var group = &cobra.Group{ID: "local", Title: "Local commands:"}

var backend capture.Backend = capture.NewPcapBackend()

var ifaceName string

func newResolver() *arp.Resolver {
	return arp.NewResolver(backend)
}

func Export(parent *cobra.Command) {
	cmds := []*cobra.Command{nicCmd, arpCmd, pingCmd, covertCmd, captureCmd, replayCmd}
	for _, cmd := range cmds {
		cmd.GroupID = group.ID
	}
	util.DisableSortFlags(cmds...)

	parent.AddGroup(group)
	parent.AddCommand(cmds...)
}
