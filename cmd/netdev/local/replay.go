package local

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zxhio/netdev/cmd/netdev/util"
	"github.com/zxhio/netdev/pkg/capture"
	"github.com/zxhio/netdev/pkg/netaddr"
	"github.com/zxhio/netdev/pkg/nic"
	"github.com/zxhio/netdev/pkg/pktqueue"
	"github.com/zxhio/netdev/pkg/utils"
	"golang.org/x/time/rate"
)

var replayCmd = &cobra.Command{
	Use:   "replay [filter expression]",
	Short: "Read packets from a pcap file, optionally sending them out of a nic",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := capture.NewOfflineSession(backend, replayRead)
		utils.CheckErrorAndExit(err, "Open file failed")

		var n *nic.NIC
		if replayInject {
			n, err = util.LookupNIC(ifaceName)
			utils.CheckErrorAndExit(err, "Lookup nic failed")
			utils.CheckErrorAndExit(n.Open(backend), "Open nic failed")
			defer n.Close()
		}

		if expr := strings.Join(args, " "); expr != "" {
			var mask netaddr.IPv4Addr
			if n != nil {
				mask = n.Netmask()
			}
			utils.CheckErrorAndExit(s.SetFilter(expr, true, mask), "Set filter failed")
		}

		ctx, cancel := util.SignalContext()
		defer cancel()

		limit := rate.Inf
		if replayRate > 0 {
			limit = rate.Limit(replayRate)
		}
		limiter := rate.NewLimiter(limit, 1)

		utils.CheckErrorAndExit(s.Start(), "Start replay failed")

		var sent, failed int
		drainSession(ctx, s, func(pkt pktqueue.Packet) bool {
			printPacket(pkt)
			if n == nil {
				return true
			}
			if err := limiter.Wait(ctx); err != nil {
				return false
			}
			if err := n.Inject(pkt.Data); err != nil {
				failed++
				utils.VerbosePrintln("Inject failed: %v", err)
			} else {
				sent++
			}
			return true
		})

		s.Dispose()
		<-s.Done()

		stats := s.Stats()
		fmt.Printf("\n%d packets read", stats.RxPackets)
		if n != nil {
			fmt.Printf(", %d sent on %s, %d failed", sent, n.Name(), failed)
		}
		fmt.Println()
		utils.CheckErrorAndExit(s.Err(), "Replay failed")
	},
}

var (
	replayRead   string
	replayInject bool
	replayRate   float64
)

func init() {
	replayCmd.Flags().StringVarP(&replayRead, "read", "r", "", "Pcap file to read")
	replayCmd.Flags().BoolVar(&replayInject, "inject", false, "Send every packet out of the nic")
	replayCmd.Flags().StringVarP(&ifaceName, "interface", "i", "", "Interface name")
	replayCmd.Flags().Float64Var(&replayRate, "rate", 0, "Packets per second when injecting, 0 unlimited")
	replayCmd.Flags().BoolVarP(&captureHex, "hex", "x", false, "Print packet hex dump")
	replayCmd.MarkFlagRequired("read")
}
