package session

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/zxhio/netdev/cmd/netdev/util"
	"github.com/zxhio/netdev/internal/api"
	"github.com/zxhio/netdev/internal/model"
	"github.com/zxhio/netdev/pkg/humanize"
	"github.com/zxhio/netdev/pkg/netaddr"
	"github.com/zxhio/netdev/pkg/utils"
)

var group = &cobra.Group{ID: "session", Title: "Daemon commands:"}

var sessionCmd = &cobra.Command{
	Use:     "session",
	Short:   "Manage capture sessions of netdevd",
	Aliases: []string{"sess"},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var createCmd = &cobra.Command{
	Use:   "create [filter expression]",
	Short: "Open a capture session on a nic or a pcap file",
	Args:  cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		spec.Filter = strings.Join(args, " ")
		info, err := api.NewReqMessage[model.SessionInfo](api.APIPathAddSession,
			api.WithReqAddr(apiAddr),
			api.WithReqMethod(http.MethodPost),
			api.WithReqJSON(&spec),
		)
		utils.CheckErrorAndExit(err, "Create session failed")
		printSessions([]*model.SessionInfo{info})
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List capture sessions",
	Aliases: []string{"ls"},
	Run: func(cmd *cobra.Command, args []string) {
		sessions, err := List(listAll, listPage, listLimit)
		utils.CheckErrorAndExit(err, "Query sessions failed")
		printSessions(sessions)
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one capture session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		info, err := api.NewReqMessage[model.SessionInfo](
			api.InstantiateSessionAPIURL(api.APIPathQuerySession, parseID(args[0])),
			api.WithReqAddr(apiAddr),
		)
		utils.CheckErrorAndExit(err, "Query session failed")
		printSessions([]*model.SessionInfo{info})
		if info.Error != "" {
			fmt.Println(color.RedString(info.Error))
		}
	},
}

var startCmd = newActionCmd("start", "Start capturing", api.APIPathStartSession, http.MethodPost)
var stopCmd = newActionCmd("stop", "Stop capturing, keep the session", api.APIPathStopSession, http.MethodPost)
var deleteCmd = newActionCmd("delete", "Dispose a capture session", api.APIPathDeleteSession, http.MethodDelete)

var packetsCmd = &cobra.Command{
	Use:     "packets <id>",
	Short:   "Pop captured packets of a session",
	Aliases: []string{"pop"},
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := api.NewReqMessage[api.PopPacketsResp](
			api.InstantiateSessionAPIURL(api.APIPathPopPackets, parseID(args[0])),
			api.WithReqAddr(apiAddr),
			api.WithReqQuery(fmt.Sprintf("limit=%d", popLimit)),
		)
		utils.CheckErrorAndExit(err, "Pop packets failed")

		for _, pkt := range resp.Packets {
			fmt.Println(pkt.Summary)
			if popHex {
				fmt.Println(pkt.Hex)
			}
		}
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <nic> <ip>",
	Short: "Resolve an ip address with ARP through netdevd",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ip, err := netaddr.ParseIPv4Addr(args[1])
		utils.CheckErrorAndExit(err, "Invalid ip")

		res, err := api.NewReqMessage[model.ARPResult](api.APIPathResolve,
			api.WithReqAddr(apiAddr),
			api.WithReqMethod(http.MethodPost),
			api.WithReqJSON(api.ResolveReq{NIC: args[0], IP: ip}),
		)
		utils.CheckErrorAndExit(err, "Resolve failed")
		if !res.Found {
			fmt.Println(color.YellowString("%s: no reply", res.IP))
			os.Exit(1)
		}
		fmt.Printf("%s is at %s\n", res.IP, res.HwAddr)
	},
}

func newActionCmd(use, short, path, method string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			_, err := api.NewReqMessage[uint64](
				api.InstantiateSessionAPIURL(path, parseID(args[0])),
				api.WithReqAddr(apiAddr),
				api.WithReqMethod(method),
			)
			utils.CheckErrorAndExit(err, strings.ToUpper(use[:1])+use[1:]+" session failed")
		},
	}
}

var (
	apiAddr string

	// create
	spec model.SessionSpec

	// list
	listPage  int
	listLimit int
	listAll   bool

	// packets
	popLimit int
	popHex   bool
)

func init() {
	sessionCmd.AddGroup(group)
	sessionCmd.PersistentFlags().StringVar(&apiAddr, "addr", api.DefaultAPIAddr, "netdevd api address, env "+api.EnvAPIAddr+" overrides")

	// create
	createCmd.Flags().StringVarP(&spec.NIC, "interface", "i", "", "Interface name")
	createCmd.Flags().StringVarP(&spec.File, "read", "r", "", "Pcap file to replay")
	createCmd.Flags().IntVarP(&spec.Snaplen, "snaplen", "s", 0, "Snapshot length, 0 for daemon default")
	createCmd.Flags().BoolVarP(&spec.Promisc, "promisc", "p", false, "Promiscuous mode")
	createCmd.Flags().IntVar(&spec.TimeoutMS, "timeout-ms", 0, "Read timeout, 0 for daemon default")
	createCmd.Flags().BoolVarP(&spec.Optimize, "optimize", "O", true, "Optimize the compiled filter")
	createCmd.Flags().StringVarP(&spec.DumpFile, "write", "w", "", "Dump file name under the daemon dump dir")
	createCmd.Flags().BoolVar(&spec.AutoDump, "auto-dump", true, "Write every captured packet to the dump file")

	// list
	listCmd.Flags().IntVar(&listPage, "page", 1, "Page number to list")
	listCmd.Flags().IntVar(&listLimit, "limit", 100, "Limit size per page")
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "List all sessions")

	// packets
	packetsCmd.Flags().IntVarP(&popLimit, "limit", "n", 10, "Max packets to pop")
	packetsCmd.Flags().BoolVarP(&popHex, "hex", "x", false, "Print packet hex")
}

func Export(parent *cobra.Command) {
	cmds := []*cobra.Command{createCmd, listCmd, showCmd, startCmd, stopCmd, deleteCmd, packetsCmd, resolveCmd}
	for _, cmd := range cmds {
		cmd.GroupID = group.ID
	}
	util.DisableSortFlags(append(cmds, sessionCmd)...)

	parent.AddGroup(group)
	parent.AddCommand(sessionCmd)
	sessionCmd.AddCommand(cmds...)
}

// List fetches one page, or every page when all is set.
func List(all bool, page, limit int) ([]*model.SessionInfo, error) {
	var sessions []*model.SessionInfo

	if all {
		page = 1
		limit = 100
	}
	for {
		resp, err := api.NewReqMessage[api.QuerySessionsResp](api.APIPathQuerySessions,
			api.WithReqAddr(apiAddr),
			api.WithReqQuery(api.QueryPage{Page: page, Limit: limit}.ToQuery()),
		)
		if err != nil {
			return nil, err
		}

		sessions = append(sessions, resp.Data...)
		if len(sessions) >= resp.Total || len(resp.Data) == 0 || !all {
			break
		}
		page++
	}
	return sessions, nil
}

func printSessions(sessions []*model.SessionInfo) {
	data := [][]any{}
	for _, s := range sessions {
		state := "idle"
		switch {
		case s.Disposed:
			state = color.RedString("disposed")
		case s.Capturing:
			state = color.GreenString("capturing")
		case s.Error != "":
			state = color.RedString("failed")
		}
		data = append(data, []any{
			s.ID, s.Mode, s.Source, state, s.Filter, s.DumpFile, s.Queued,
			s.Stats.RxPackets, humanize.Bytes(int(s.Stats.RxBytes)),
		})
	}

	table := util.NewTable()
	table.Header("ID", "Mode", "Source", "State", "Filter", "Dump", "Queued", "Packets", "Bytes")
	table.Bulk(data)
	table.Render()
}

func parseID(s string) uint64 {
	id, err := strconv.ParseUint(s, 10, 64)
	utils.CheckErrorAndExit(err, "Invalid session id")
	return id
}
