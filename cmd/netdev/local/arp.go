package local

import (
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/zxhio/netdev/cmd/netdev/util"
	"github.com/zxhio/netdev/pkg/arp"
	"github.com/zxhio/netdev/pkg/netaddr"
	"github.com/zxhio/netdev/pkg/utils"
)

var arpCmd = &cobra.Command{
	Use:   "arp <ip|ip-ip>",
	Short: "Resolve hardware addresses with ARP",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		targets, err := netaddr.NewIPv4Range(args[0])
		utils.CheckErrorAndExit(err, "Invalid target")

		n, err := util.LookupNIC(ifaceName)
		utils.CheckErrorAndExit(err, "Lookup nic failed")

		resolver := newResolver()
		resolver.Timeout = arpTimeout
		resolver.Interval = arpInterval

		ctx, cancel := util.SignalContext()
		defer cancel()

		data := [][]any{}
		targets.Each(func(ip netaddr.IPv4Addr) bool {
			hw, found, err := resolver.Resolve(ctx, n, ip)
			if err != nil {
				data = append(data, []any{ip, arp.NextHop(n, ip), "", color.RedString(err.Error())})
				return ctx.Err() == nil
			}
			state := color.YellowString("timeout")
			if found {
				state = color.GreenString("ok")
			}
			data = append(data, []any{ip, arp.NextHop(n, ip), hw, state})
			return true
		})

		table := util.NewTable()
		table.Header("IP", "Next Hop", "MAC", "State")
		table.Bulk(data)
		table.Render()
	},
}

var (
	arpTimeout  time.Duration
	arpInterval time.Duration
)

func init() {
	arpCmd.Flags().StringVarP(&ifaceName, "interface", "i", "", "Interface name")
	arpCmd.Flags().DurationVarP(&arpTimeout, "timeout", "w", arp.DefaultTimeout, "Wait time for each reply")
	arpCmd.Flags().DurationVar(&arpInterval, "interval", arp.DefaultInterval, "Request resend interval")
}
