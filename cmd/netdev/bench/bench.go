package bench

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/spf13/cobra"
	"github.com/zxhio/netdev/cmd/netdev/util"
	"github.com/zxhio/netdev/internal/bench"
	"github.com/zxhio/netdev/pkg/arp"
	"github.com/zxhio/netdev/pkg/capture"
	"github.com/zxhio/netdev/pkg/errcode"
	"github.com/zxhio/netdev/pkg/nic"
	"github.com/zxhio/netdev/pkg/utils"
)

var benchCmd = cobra.Command{
	Use:     "bench",
	Short:   "Packets transmit benchmark",
	Aliases: []string{"b"},
}

var tcpCmd = cobra.Command{
	Use:   "tcp",
	Short: "Packets transmit benchmark for TCP",
	Run: func(cmd *cobra.Command, args []string) {
		runTxBenchmark(bench.WithLayerTCP(&tcp))
	},
}

var udpCmd = cobra.Command{
	Use:   "udp",
	Short: "Packets transmit benchmark for UDP",
	Run: func(cmd *cobra.Command, args []string) {
		runTxBenchmark(bench.WithLayerUDP(&udp))
	},
}

var icmpCmd = cobra.Command{
	Use:   "icmp",
	Short: "Packets transmit benchmark for ICMP",
	Run: func(cmd *cobra.Command, args []string) {
		runTxBenchmark(bench.WithLayerICMP(&icmp))
	},
}

var (
	ifaceName string
	total     int
	workers   int
	rateLimit int
	statsDur  time.Duration
	afPacket  bool

	ether bench.LayerEthernet
	ipv4  bench.LayerIPv4
	tcp   bench.LayerTCP
	icmp  bench.LayerICMP
	udp   bench.LayerUDP
)

func init() {
	util.DisableSortFlags(&benchCmd)
	benchCmd.PersistentFlags().IntVarP(&total, "total", "n", -1, "Transmit packet total, -1 unlimited")
	benchCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 1, "Parallel transmitters")
	benchCmd.PersistentFlags().IntVarP(&rateLimit, "rate-limit", "r", -1, "Packet send rate limit (s), -1 unlimited")
	benchCmd.PersistentFlags().StringVarP(&ifaceName, "interface", "i", "", "Interface name")
	benchCmd.PersistentFlags().DurationVarP(&statsDur, "stats-dur", "D", 0, "Dump stats duration")
	benchCmd.PersistentFlags().BoolVar(&afPacket, "af-packet", false, "Send on raw AF_PACKET sockets instead of libpcap")

	// L2
	benchCmd.PersistentFlags().Var(&ether.SrcMAC, "smac", "Source mac address")
	benchCmd.PersistentFlags().Var(&ether.DstMAC, "dmac", "Destionation mac address, resolved with ARP if not set")

	// L3
	benchCmd.PersistentFlags().VarP(&ipv4.SrcIPv4, "source", "s", "Source ip address")
	benchCmd.PersistentFlags().VarP(&ipv4.DstIPv4, "destination", "d", "Destionation ip address")
	benchCmd.PersistentFlags().Uint8Var(&ipv4.TTL, "ttl", 97, "Time to live")
	benchCmd.MarkPersistentFlagRequired("destination")

	// TCP
	util.DisableSortFlags(&tcpCmd)
	setCommandFlagsPort(&tcpCmd, &tcp.LayerPorts)
	tcpCmd.Flags().BoolVarP(&tcp.SYN, "syn", "S", false, "TCP flag SYN")
	tcpCmd.Flags().BoolVar(&tcp.ACK, "ack", false, "TCP flag ACK")
	tcpCmd.Flags().BoolVarP(&tcp.PSH, "psh", "P", false, "TCP flag PSH")
	tcpCmd.Flags().BoolVarP(&tcp.RST, "rst", "R", false, "TCP flag RST")
	tcpCmd.Flags().BoolVarP(&tcp.FIN, "fin", "F", false, "TCP flag FIN")
	tcpCmd.Flags().Uint32Var(&tcp.Seq, "seq", 0, "TCP sequence")
	tcpCmd.Flags().StringVar(&tcp.Payload, "payload", "", "TCP payload")
	tcpCmd.Flags().StringVar(&tcp.PayloadPath, "payload-path", "", "TCP payload path")
	benchCmd.AddCommand(&tcpCmd)

	// UDP
	util.DisableSortFlags(&udpCmd)
	setCommandFlagsPort(&udpCmd, &udp.LayerPorts)
	udpCmd.Flags().StringVar(&udp.Payload, "payload", "", "UDP payload")
	udpCmd.Flags().StringVar(&udp.PayloadPath, "payload-path", "", "UDP payload path")
	benchCmd.AddCommand(&udpCmd)

	// ICMP
	util.DisableSortFlags(&icmpCmd)
	icmpCmd.Flags().Uint16Var(&icmp.ID, "id", 0, "ICMPv4 echo request id")
	icmpCmd.Flags().Uint16Var(&icmp.Seq, "seq", 0, "ICMPv4 echo request sequence")
	benchCmd.AddCommand(&icmpCmd)
}

func setCommandFlagsPort(cmd *cobra.Command, p *bench.LayerPorts) {
	cmd.Flags().Uint16Var(&p.SPort, "sport", 0, "Source port")
	cmd.Flags().Uint16Var(&p.DPort, "dport", 0, "Destionation port")
}

func runTxBenchmark(opts ...bench.LayerOpt) {
	n, err := util.LookupNIC(ifaceName)
	utils.CheckErrorAndExit(err, "Lookup nic failed")
	fillAddrs(n)

	data, err := bench.MakePacketData(&ether, &ipv4, append(opts, bench.WithLayerMTU(n.Info().MTU))...)
	utils.CheckErrorAndExit(err, "Make packet tx data failed")

	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	fmt.Println(pkt.String())
	fmt.Printf("PACKET hexdump %d bytes\n%v\n", len(data), hex.Dump(data))

	txList, closeTx := newTxList(n)
	defer closeTx()

	ctx, cancel := util.SignalContext()
	defer cancel()

	_, err = bench.Benchmark(ctx, txList, data,
		bench.WithBenchmarkN(total),
		bench.WithBenchmarkRateLimit(rateLimit),
		bench.WithBenchmarkStatsDur(statsDur),
	)
	utils.CheckErrorAndExit(err, "Run tx benchmark failed")
}

// fillAddrs defaults the source addresses to n and resolves the next hop
// hardware address when --dmac is not given.
func fillAddrs(n *nic.NIC) {
	if ether.SrcMAC.IsZero() {
		fmt.Printf("[MAC] Source: %s → %s\n", ether.SrcMAC, n.HwAddr())
		ether.SrcMAC = n.HwAddr()
	}
	if ipv4.SrcIPv4.IsZero() {
		fmt.Printf("[IPv4] Source: %s → %s\n", ipv4.SrcIPv4, n.IP())
		ipv4.SrcIPv4 = n.IP()
	}
	fmt.Printf("[IPv4] Destionation: %s\n", ipv4.DstIPv4)

	if !ether.DstMAC.IsZero() {
		return
	}
	ctx, cancel := util.SignalContext()
	defer cancel()
	hw, found, err := arp.NewResolver(backend).Resolve(ctx, n, ipv4.DstIPv4)
	if err == nil && !found {
		err = errcode.New(errcode.CodeResolution, "no arp reply from %s", arp.NextHop(n, ipv4.DstIPv4))
	}
	utils.CheckErrorAndExit(err, "Resolve destination mac failed")
	fmt.Printf("[MAC] Destionation: %s → %s\n", ether.DstMAC, hw)
	ether.DstMAC = hw
}

func newTxList(n *nic.NIC) ([]bench.Tx, func()) {
	var (
		txList  []bench.Tx
		closers utils.NamedClosers
	)
	closeAll := func() {
		closers.Close(&utils.CloseOpt{ReverseOrder: true, Output: verbosePrint, ErrorOutput: verbosePrint})
	}

	for i := 0; i < max(workers, 1); i++ {
		if afPacket {
			tx, err := bench.NewAFPacketTx(n.Name())
			if err != nil {
				closeAll()
				utils.CheckErrorAndExit(err, "New AF_PACKET tx failed")
			}
			txList = append(txList, tx)
			closers = append(closers, utils.NamedCloser{Name: fmt.Sprintf("tx %d", i), Close: tx.Close})
			continue
		}

		// Each worker owns a handle so injections do not contend on one lock
		wn, err := nic.New(nic.Default(), n.Index())
		if err == nil {
			err = wn.Open(backend)
		}
		if err != nil {
			closeAll()
			utils.CheckErrorAndExit(err, "Open nic failed")
		}
		txList = append(txList, bench.NewInjectTx(wn))
		closers = append(closers, utils.NamedCloser{Name: fmt.Sprintf("nic %s handle %d", wn.Name(), i), Close: wn.Close})
	}
	return txList, closeAll
}

func verbosePrint(a ...any) { utils.VerbosePrintln("%s", fmt.Sprint(a...)) }

var backend capture.Backend = capture.NewPcapBackend()

func Export(parent *cobra.Command) {
	parent.AddCommand(&benchCmd)
}
