// Package profile serves net/http/pprof under /netdev-pprof/.
package profile

import (
	"net"
	"net/http"
	"net/http/pprof"
)

func Serve(lis net.Listener) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/netdev-pprof/", pprof.Index)
	mux.HandleFunc("/netdev-pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/netdev-pprof/profile", pprof.Profile)
	mux.HandleFunc("/netdev-pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/netdev-pprof/trace", pprof.Trace)

	mux.Handle("/netdev-pprof/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/netdev-pprof/heap", pprof.Handler("heap"))
	mux.Handle("/netdev-pprof/threadcreate", pprof.Handler("threadcreate"))
	mux.Handle("/netdev-pprof/block", pprof.Handler("block"))
	mux.Handle("/netdev-pprof/mutex", pprof.Handler("mutex"))

	return http.Serve(lis, mux)
}
