package local

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zxhio/netdev/cmd/netdev/util"
	"github.com/zxhio/netdev/internal/covert"
	"github.com/zxhio/netdev/pkg/fastpkt"
	"github.com/zxhio/netdev/pkg/netaddr"
	"github.com/zxhio/netdev/pkg/utils"
)

var covertCmd = &cobra.Command{
	Use:   "covert <ip|udp> <dst-ip> <message>",
	Short: "Send a UDP datagram carrying a hidden message",
	Long: `Send a UDP datagram carrying a hidden message.

ip:  the message follows the IP datagram, past the total length
udp: the message follows the UDP datagram, past the UDP length`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		mode, err := covert.ParseMode(args[0])
		utils.CheckErrorAndExit(err, "Invalid mode")
		dst, err := netaddr.ParseIPv4Addr(args[1])
		utils.CheckErrorAndExit(err, "Invalid destination")

		n, err := util.LookupNIC(ifaceName)
		utils.CheckErrorAndExit(err, "Lookup nic failed")

		ctx, cancel := util.SignalContext()
		defer cancel()

		s := covert.NewSender(backend, newResolver(), covert.WithRepeat(covertRepeat), covert.WithRate(covertRate))
		frame, err := s.Send(ctx, n, covert.Message{
			Mode:    mode,
			SrcIP:   covertSrc,
			DstIP:   dst,
			SrcPort: covertSrcPort,
			DstPort: covertDstPort,
			Overt:   []byte(covertOvert),
			Covert:  []byte(args[2]),
		})
		utils.CheckErrorAndExit(err, "Send failed")

		fmt.Println(fastpkt.Format(frame, fastpkt.WithFormatEthernet()))
		utils.VerbosePrintln("%d bytes\n%s", len(frame), hex.Dump(frame))
	},
}

var (
	covertSrc     netaddr.IPv4Addr
	covertSrcPort uint16
	covertDstPort uint16
	covertOvert   string
	covertRepeat  int
	covertRate    float64
)

func init() {
	covertCmd.Flags().StringVarP(&ifaceName, "interface", "i", "", "Interface name")
	covertCmd.Flags().VarP(&covertSrc, "source", "s", "Source ip address, default the nic address")
	covertCmd.Flags().Uint16Var(&covertSrcPort, "sport", covert.DefaultSrcPort, "Source port")
	covertCmd.Flags().Uint16VarP(&covertDstPort, "dport", "p", 53, "Destination port")
	covertCmd.Flags().StringVar(&covertOvert, "overt", covert.DefaultOvert, "Visible UDP payload")
	covertCmd.Flags().IntVarP(&covertRepeat, "repeat", "n", 1, "Send times")
	covertCmd.Flags().Float64Var(&covertRate, "rate", 10, "Packets per second")
}
