package local

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/zxhio/netdev/cmd/netdev/util"
	"github.com/zxhio/netdev/internal/ping"
	"github.com/zxhio/netdev/pkg/netaddr"
	"github.com/zxhio/netdev/pkg/utils"
)

var pingCmd = &cobra.Command{
	Use:   "ping <ip>",
	Short: "Send ICMP echo requests built and captured on a nic",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		target, err := netaddr.ParseIPv4Addr(args[0])
		utils.CheckErrorAndExit(err, "Invalid target")

		n, err := util.LookupNIC(ifaceName)
		utils.CheckErrorAndExit(err, "Lookup nic failed")

		ctx, cancel := util.SignalContext()
		defer cancel()

		p := ping.New(backend, newResolver(),
			ping.WithCount(pingCount),
			ping.WithInterval(pingInterval),
			ping.WithTimeout(pingTimeout),
			ping.WithTTL(pingTTL),
		)
		fmt.Printf("PING %s from %s %s: %d data bytes, id %d\n", target, n.IP(), n.Name(), len(ping.EchoPayload), p.ID())

		results, err := p.Run(ctx, n, target, func(r ping.Result) {
			if r.Received {
				fmt.Printf("Reply from %s: seq=%d time=%v\n", r.Target, r.Seq, r.RTT.Round(time.Microsecond))
			} else {
				fmt.Println(color.YellowString("Request timeout for seq %d", r.Seq))
			}
		})
		utils.CheckErrorAndExit(err, "Ping failed")

		var (
			received int
			rttSum   time.Duration
		)
		for _, r := range results {
			if r.Received {
				received++
				rttSum += r.RTT
			}
		}
		fmt.Printf("\n--- %s ping statistics ---\n", target)
		fmt.Printf("%d packets transmitted, %d received, %.1f%% packet loss\n",
			len(results), received, lossPercent(len(results), received))
		if received > 0 {
			fmt.Printf("rtt avg %v\n", (rttSum / time.Duration(received)).Round(time.Microsecond))
		}
	},
}

func lossPercent(sent, received int) float64 {
	if sent == 0 {
		return 0
	}
	return float64(sent-received) * 100 / float64(sent)
}

var (
	pingCount    int
	pingInterval time.Duration
	pingTimeout  time.Duration
	pingTTL      uint8
)

func init() {
	pingCmd.Flags().StringVarP(&ifaceName, "interface", "i", "", "Interface name")
	pingCmd.Flags().IntVarP(&pingCount, "count", "c", ping.DefaultCount, "Number of echo requests")
	pingCmd.Flags().DurationVar(&pingInterval, "interval", ping.DefaultInterval, "Wait between requests")
	pingCmd.Flags().DurationVarP(&pingTimeout, "timeout", "w", ping.DefaultTimeout, "Wait time for each reply")
	pingCmd.Flags().Uint8Var(&pingTTL, "ttl", ping.DefaultTTL, "Time to live")
}
