package api

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/zxhio/netdev/pkg/utils"
)

const (
	EnvAPIAddr     = "NETDEV_API_ADDR"
	DefaultAPIAddr = "http://127.0.0.1:9922"
)

type reqOpts struct {
	addr   string
	method string
	query  string
	body   io.Reader

	jsonErr error
}

type reqOpt func(opts *reqOpts)

func WithReqAddr(addr string) reqOpt {
	return func(opts *reqOpts) { opts.addr = addr }
}

func WithReqMethod(method string) reqOpt {
	return func(opts *reqOpts) { opts.method = method }
}

func WithReqQuery(query string) reqOpt {
	return func(opts *reqOpts) { opts.query = query }
}

func WithReqBody(body io.Reader) reqOpt {
	return func(opts *reqOpts) { opts.body = body }
}

// WithReqJSON sends v encoded as JSON.
func WithReqJSON(v any) reqOpt {
	return func(opts *reqOpts) {
		data, err := json.Marshal(v)
		if err != nil {
			opts.jsonErr = err
			return
		}
		opts.body = bytes.NewReader(data)
	}
}

func NewReqMessage[T any](uri string, opts ...reqOpt) (*T, error) {
	resp, err := newReq(uri, opts...)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := httputil.DumpResponse(resp, true)
	if err != nil {
		return nil, err
	}
	utils.VerbosePrintln("")
	utils.VerbosePrintln(addPrefixToHTTPLine(string(data), "< "))

	b := bytes.NewBuffer(nil)
	_, err = io.Copy(b, resp.Body)
	if err != nil {
		return nil, err
	}

	return GetBodyData[T](b.Bytes())
}

func newReq(reqURI string, opts ...reqOpt) (*http.Response, error) {
	var o reqOpts
	for _, opt := range opts {
		opt(&o)
	}
	if o.method == "" {
		o.method = http.MethodGet
	}

	// Get api address from env
	addr := os.Getenv(EnvAPIAddr)
	if addr != "" {
		o.addr = addr
	}
	if o.addr == "" {
		o.addr = DefaultAPIAddr
	}
	if o.jsonErr != nil {
		return nil, o.jsonErr
	}

	reqURI, err := url.JoinPath(o.addr, reqURI)
	if err != nil {
		return nil, err
	}

	reqURL := reqURI
	if o.query != "" {
		reqURL = fmt.Sprintf("%s?%s", reqURI, o.query)
	}
	req, err := http.NewRequest(o.method, reqURL, o.body)
	if err != nil {
		return nil, err
	}
	if o.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	data, err := httputil.DumpRequest(req, true)
	if err != nil {
		return nil, err
	}
	utils.VerbosePrintln(addPrefixToHTTPLine(string(data), "> "))

	client := http.Client{
		Transport: &http.Transport{
			TLSClientConfig:   &tls.Config{InsecureSkipVerify: true},
			DisableKeepAlives: true,
		},
		Timeout: time.Second * 10,
	}
	return client.Do(req)
}

func addPrefixToHTTPLine(s, prefix string) string {
	lines := strings.Split(s, "\r\n")
	for k, line := range lines {
		lines[k] = prefix + line
	}
	return strings.Join(lines, "\r\n")
}
