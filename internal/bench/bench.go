package bench

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/pkg/errors"
	"github.com/zxhio/netdev/pkg/humanize"
	"github.com/zxhio/netdev/pkg/netutil"
	"github.com/zxhio/netdev/pkg/utils"
	"golang.org/x/time/rate"
)

type benchmarkOpts struct {
	total     int
	rateLimit int
	statsDur  time.Duration
	output    io.Writer
}

func defaultBenchmarkOpts() benchmarkOpts {
	return benchmarkOpts{
		total:     -1,
		rateLimit: -1,
		output:    os.Stdout,
	}
}

type BenchmarkOpt func(*benchmarkOpts)

// WithBenchmarkN stops after n packets in total, -1 for unlimited.
func WithBenchmarkN(n int) BenchmarkOpt {
	return func(bo *benchmarkOpts) { bo.total = n }
}

// WithBenchmarkRateLimit caps packets per second across all transmitters.
func WithBenchmarkRateLimit(rateLimit int) BenchmarkOpt {
	return func(bo *benchmarkOpts) { bo.rateLimit = rateLimit }
}

func WithBenchmarkStatsDur(dur time.Duration) BenchmarkOpt {
	return func(bo *benchmarkOpts) { bo.statsDur = dur }
}

func WithBenchmarkOutput(w io.Writer) BenchmarkOpt {
	return func(bo *benchmarkOpts) { bo.output = w }
}

// Benchmark transmits data on every tx in parallel until the total is
// reached or ctx is done, then prints and returns the final statistics.
func Benchmark(ctx context.Context, txList []Tx, data []byte, opts ...BenchmarkOpt) ([]netutil.Statistics, error) {
	if len(txList) == 0 {
		return nil, errors.New("no transmitter")
	}

	o := defaultBenchmarkOpts()
	for _, opt := range opts {
		opt(&o)
	}
	utils.VerbosePrintln("Benchmark total:%d, rate limit:%d, status dur:%v", o.total, o.rateLimit, o.statsDur)

	var limiter *rate.Limiter
	if o.rateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(o.rateLimit), 1)
	}

	groups := make([]*benchmarkGroup, len(txList))
	for k, tx := range txList {
		groups[k] = &benchmarkGroup{tx: tx, total: o.total}
	}
	if o.total != -1 {
		// Simple method to assign the pkts to groups
		for _, g := range groups {
			g.total = 0
		}
		for k := range o.total {
			groups[k%len(groups)].total++
		}
	}

	prev := make(map[int]netutil.Statistics)
	if o.statsDur != 0 {
		statsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go dumpStats(statsCtx, o.output, txList, o.statsDur, prev)
	}

	wg := sync.WaitGroup{}
	wg.Add(len(groups))
	for _, g := range groups {
		go func() {
			defer wg.Done()
			g.run(ctx, limiter, data)
		}()
	}
	wg.Wait()

	stats := make([]netutil.Statistics, len(txList))
	for k, tx := range txList {
		stats[k] = tx.Stats()
	}
	if o.statsDur != 0 {
		displayStats(o.output, txList, prev)
	}
	return stats, nil
}

type benchmarkGroup struct {
	total int
	tx    Tx
}

func (g *benchmarkGroup) run(ctx context.Context, limiter *rate.Limiter, data []byte) {
	utils.VerbosePrintln("Run benchmark on %s, total %d", g.tx.Name(), g.total)

	for remain := g.total; g.total == -1 || remain > 0; remain-- {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
		} else if ctx.Err() != nil {
			return
		}
		g.tx.Transmit(data)
	}
}

func dumpStats(ctx context.Context, w io.Writer, txList []Tx, dur time.Duration, prev map[int]netutil.Statistics) {
	timer := time.NewTicker(dur)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			displayStats(w, txList, prev)
		}
	}
}

var statsMu sync.Mutex

func displayStats(w io.Writer, txList []Tx, prev map[int]netutil.Statistics) {
	statsMu.Lock()
	defer statsMu.Unlock()

	tbl := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.SeparatorsNone,
			},
		})),
		tablewriter.WithRowAlignment(tw.AlignCenter),
	)
	tbl.Header([]string{"tx", "nic", "tx_pkts", "tx_pps", "tx_bytes", "tx_bps", "tx_iops", "tx_err_iops"})

	sum := struct {
		netutil.Statistics
		netutil.StatisticsRate
	}{}
	for k, tx := range txList {
		stat := tx.Stats()
		rate := stat.Rate(prev[k])
		prev[k] = stat

		tbl.Append([]string{
			fmt.Sprintf("%d", k),
			tx.Name(),
			fmt.Sprintf("%d", stat.TxPackets),
			fmt.Sprintf("%.0f", rate.TxPPS),
			humanize.Bytes(int(stat.TxBytes)),
			humanize.BitsRate(int(rate.TxBPS)),
			fmt.Sprintf("%.0f", rate.TxIOPS),
			fmt.Sprintf("%.0f", rate.TxErrIOPS),
		})
		sum.TxPackets += stat.TxPackets
		sum.TxBytes += stat.TxBytes
		sum.TxPPS += rate.TxPPS
		sum.TxBPS += rate.TxBPS
		sum.TxIOPS += rate.TxIOPS
		sum.TxErrIOPS += rate.TxErrIOPS
	}
	tbl.Footer([]string{
		"SUM",
		"",
		fmt.Sprintf("%d", sum.TxPackets),
		fmt.Sprintf("%.0f", sum.TxPPS),
		humanize.Bytes(int(sum.TxBytes)),
		humanize.BitsRate(int(sum.TxBPS)),
		fmt.Sprintf("%.0f", sum.TxIOPS),
		fmt.Sprintf("%.0f", sum.TxErrIOPS),
	})
	tbl.Render()
	fmt.Fprintln(w)
}
