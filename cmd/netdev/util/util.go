package util

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
	"github.com/zxhio/netdev/pkg/nic"
)

func DisableSortFlags(cmds ...*cobra.Command) {
	for _, cmd := range cmds {
		cmd.InheritedFlags().SortFlags = false
		cmd.PersistentFlags().SortFlags = false
		cmd.Flags().SortFlags = false
	}
}

// LookupNIC finds name in the host directory, or the first NIC that is up
// and has an address when name is empty.
func LookupNIC(name string) (*nic.NIC, error) {
	dir := nic.Default()
	if name != "" {
		return nic.ByName(dir, name)
	}

	infos, err := dir.All()
	if err != nil {
		return nil, err
	}
	for k, info := range infos {
		if info.Up && info.Physical && !info.IP.IsZero() {
			return nic.New(dir, nic.Index(k))
		}
	}
	return nic.New(dir, 0)
}

// SignalContext is canceled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func NewTable() *tablewriter.Table {
	return tablewriter.NewTable(os.Stdout,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.SeparatorsNone,
				Lines:      tw.LinesNone,
			},
		})),
	)
}
