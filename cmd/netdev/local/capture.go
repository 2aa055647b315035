package local

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/zxhio/netdev/cmd/netdev/util"
	"github.com/zxhio/netdev/pkg/capture"
	"github.com/zxhio/netdev/pkg/fastpkt"
	"github.com/zxhio/netdev/pkg/humanize"
	"github.com/zxhio/netdev/pkg/pktqueue"
	"github.com/zxhio/netdev/pkg/utils"
)

var captureCmd = &cobra.Command{
	Use:     "capture [filter expression]",
	Short:   "Capture packets on a nic",
	Aliases: []string{"cap", "dump"},
	Run: func(cmd *cobra.Command, args []string) {
		n, err := util.LookupNIC(ifaceName)
		utils.CheckErrorAndExit(err, "Lookup nic failed")

		opts := []capture.SessionOpt{
			capture.WithSnaplen(captureSnaplen),
			capture.WithPromisc(capturePromisc),
		}
		if captureWrite != "" {
			opts = append(opts, capture.WithAutoDump())
		}
		s, err := capture.NewLiveSession(backend, n.Name(), opts...)
		utils.CheckErrorAndExit(err, "Open capture failed")

		expr := strings.Join(args, " ")
		if expr != "" {
			err = s.SetFilter(expr, true, n.Netmask())
			utils.CheckErrorAndExit(err, "Set filter failed")
			if captureDisasm {
				for _, ins := range s.Filter().Disassemble() {
					fmt.Println(ins)
				}
			}
		}
		if captureWrite != "" {
			err = s.OpenDumpFile(captureWrite)
			utils.CheckErrorAndExit(err, "Open dump file failed")
		}

		ctx, cancel := util.SignalContext()
		defer cancel()

		utils.CheckErrorAndExit(s.Start(), "Start capture failed")
		fmt.Printf("listening on %s, snapshot length %d bytes\n", n.Name(), captureSnaplen)

		count := 0
		drainSession(ctx, s, func(pkt pktqueue.Packet) bool {
			printPacket(pkt)
			count++
			return captureCount <= 0 || count < captureCount
		})

		s.Dispose()
		<-s.Done()

		stats := s.Stats()
		fmt.Printf("\n%d packets captured, %s\n", stats.RxPackets, humanize.Bytes(int(stats.RxBytes)))
		utils.CheckErrorAndExit(s.Err(), "Capture failed")
	},
}

var (
	captureSnaplen int
	capturePromisc bool
	captureWrite   string
	captureCount   int
	captureHex     bool
	captureDisasm  bool
)

func init() {
	captureCmd.Flags().StringVarP(&ifaceName, "interface", "i", "", "Interface name")
	captureCmd.Flags().IntVarP(&captureSnaplen, "snaplen", "s", capture.DefaultSnaplen, "Snapshot length")
	captureCmd.Flags().BoolVarP(&capturePromisc, "promisc", "p", false, "Promiscuous mode")
	captureCmd.Flags().StringVarP(&captureWrite, "write", "w", "", "Write packets to a pcap file")
	captureCmd.Flags().IntVarP(&captureCount, "count", "c", 0, "Exit after count packets, 0 unlimited")
	captureCmd.Flags().BoolVarP(&captureHex, "hex", "x", false, "Print packet hex dump")
	captureCmd.Flags().BoolVarP(&captureDisasm, "disasm", "d", false, "Print the compiled filter")
}

// drainSession hands queued packets to fn until fn returns false, ctx is
// done, or the capture loop has exited and the queue is empty.
func drainSession(ctx context.Context, s *capture.Session, fn func(pktqueue.Packet) bool) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	drain := func() bool {
		for {
			pkt, ok := s.Queue().TryPop()
			if !ok {
				return true
			}
			if !fn(pkt) {
				return false
			}
		}
	}

	for {
		if !drain() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-s.Done():
			drain()
			return
		case <-ticker.C:
		}
	}
}

func printPacket(pkt pktqueue.Packet) {
	fmt.Println(fastpkt.FormatWithTime(pkt.Timestamp, pkt.Data, fastpkt.WithFormatEthernet()))
	if captureHex {
		fmt.Print(hex.Dump(pkt.Data))
	}
}
