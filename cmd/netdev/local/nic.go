package local

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/zxhio/netdev/cmd/netdev/util"
	"github.com/zxhio/netdev/pkg/nic"
	"github.com/zxhio/netdev/pkg/utils"
)

var nicCmd = &cobra.Command{
	Use:     "nic",
	Short:   "List network interfaces",
	Aliases: []string{"nics"},
	Run:     listNICs,
}

var nicListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List network interfaces",
	Aliases: []string{"ls"},
	Run:     listNICs,
}

func init() {
	nicCmd.AddCommand(nicListCmd)
}

func listNICs(cmd *cobra.Command, args []string) {
	infos, err := nic.Default().All()
	utils.CheckErrorAndExit(err, "List nics failed")

	data := [][]any{}
	for k, info := range infos {
		state := color.RedString("down")
		if info.Up {
			state = color.GreenString("up")
		}
		data = append(data, []any{
			k, info.Name, info.IP, info.Netmask, info.Gateway, info.HwAddr,
			info.MTU, state, info.Physical, info.Description,
		})
	}

	table := util.NewTable()
	table.Header("Index", "Name", "IP", "Netmask", "Gateway", "MAC", "MTU", "State", "Physical", "Description")
	table.Bulk(data)
	table.Render()
	fmt.Println()
}
