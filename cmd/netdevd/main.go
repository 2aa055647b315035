package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/zxhio/netdev/internal/api"
	"github.com/zxhio/netdev/internal/config"
	"github.com/zxhio/netdev/internal/service"
	"github.com/zxhio/netdev/pkg/arp"
	"github.com/zxhio/netdev/pkg/builder"
	"github.com/zxhio/netdev/pkg/capture"
	"github.com/zxhio/netdev/pkg/nic"
	"github.com/zxhio/netdev/pkg/profile"
	"github.com/zxhio/netdev/pkg/utils"
)

const logoAscii = `
           |     |
 |\ /_)_|_/|/_)\/
 | |\_  | \|\_  \/`

var (
	version    bool
	verbose    bool
	configFile string
)

func main() {
	pflag.BoolVarP(&version, "version", "V", false, "Print version")
	pflag.BoolVarP(&verbose, "verbose", "v", false, "Verbose output, log to stderr")
	pflag.StringVarP(&configFile, "config", "c", "", "Config file")
	pflag.String("listen", ":9922", "API listen address")
	pflag.Bool("pprof", false, "Serve pprof")
	pflag.String("log-level", "info", "Log level")
	pflag.String("log-file", "/var/log/netdev/netdevd.log", "Log file, empty for stderr")
	pflag.String("dump-dir", "/var/lib/netdev", "Directory of capture dump files")
	pflag.String("replay-dir", "/var/lib/netdev", "Directory of files offline sessions may open")
	pflag.Parse()

	if version {
		fmt.Println(color.HiBlueString(logoAscii))
		fmt.Println(builder.BuildInfo())
		os.Exit(0)
	}

	cfg, err := config.Load(configFile, pflag.CommandLine)
	utils.CheckErrorAndExit(err, "Load config")
	setupLogger(cfg)

	logrus.WithField("pid", os.Getpid()).Info("///netdevd start")
	defer logrus.WithField("pid", os.Getpid()).Info("///netdevd quit")

	var closers utils.NamedClosers
	defer func() {
		closers.Close(&utils.CloseOpt{
			ReverseOrder: true,
			Output:       logrus.Info,
			ErrorOutput:  logrus.Error,
		})
	}()

	lis, err := net.Listen("tcp", cfg.API.Listen)
	if err != nil {
		logrus.WithError(err).Fatal("Fatal to listen")
	}
	closers = append(closers, utils.NamedCloser{Name: "api listener", Close: ignoreClosed(lis.Close)})
	logrus.WithField("addr", lis.Addr()).Info("Listen on")

	if cfg.Pprof.Enabled {
		plis, err := net.Listen("tcp", cfg.Pprof.Listen)
		if err != nil {
			logrus.WithError(err).Fatal("Fatal to listen pprof")
		}
		closers = append(closers, utils.NamedCloser{Name: "pprof listener", Close: ignoreClosed(plis.Close)})
		logrus.WithField("addr", plis.Addr()).Info("Pprof listen on")
		go profile.Serve(plis)
	}

	dir := nic.Default()
	if err := dir.Err(); err != nil {
		logrus.WithError(err).Fatal("Fatal to list nics")
	}
	logrus.WithField("num", dir.Len()).Info("Loaded nics")

	backend := capture.NewPcapBackend()
	resolver := arp.NewResolver(backend)
	resolver.Timeout = cfg.ARP.Timeout
	resolver.Interval = cfg.ARP.Interval

	sessions := service.NewSessionService(backend, dir, cfg.Capture)
	closers = append(closers, utils.NamedCloser{Name: "session service", Close: func() error {
		sessions.Close()
		return nil
	}})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	go func() {
		sig := <-sigCh
		logrus.WithField("sig", sig).Info("Recv signal")
		lis.Close()
	}()

	g := gin.New()
	g.Use(gin.Recovery(), ginLogger())
	api.SetNICRouter(g, service.NewNICService(dir, resolver))
	api.SetSessionRouter(g, sessions)
	if err := g.RunListener(lis); err != nil && !isClosed(err) {
		logrus.WithError(err).Error("Fail to serve api")
	}
}

func setupLogger(cfg *config.Config) {
	level, _ := logrus.ParseLevel(cfg.Log.Level)
	if verbose {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)

	if verbose || cfg.Log.File == "" {
		gin.SetMode(gin.DebugMode)
		return
	}
	gin.SetMode(gin.ReleaseMode)
	logrus.SetOutput(&lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
}

// ginLogger routes access logs through logrus.
func ginLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logrus.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
			"client": c.ClientIP(),
		}).Debug("API request")
	}
}

func ignoreClosed(close func() error) func() error {
	return func() error {
		if err := close(); err != nil && !isClosed(err) {
			return err
		}
		return nil
	}
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
