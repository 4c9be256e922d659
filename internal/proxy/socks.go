// Package proxy builds the HTTP client the inference engines use.
package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

const DialTimeout = 30 * time.Second

// NewClient returns an HTTP client that dials through the SOCKS5 proxy at
// socksAddr, or directly when socksAddr is empty.
//
// The client has no overall timeout: a streamed reply may take as long as the
// model needs. headerTimeout bounds the wait for the response headers; zero
// means no bound.
func NewClient(socksAddr string, headerTimeout time.Duration) (*http.Client, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ResponseHeaderTimeout = max(headerTimeout, 0)

	direct := &net.Dialer{Timeout: DialTimeout, KeepAlive: 30 * time.Second}
	tr.DialContext = direct.DialContext

	if socksAddr != "" {
		dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, direct)
		if err != nil {
			return nil, fmt.Errorf("socks5 %s: %w", socksAddr, err)
		}

		tr.Proxy = nil
		tr.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			tr.DialContext = cd.DialContext
		}
	}

	return &http.Client{Transport: tr}, nil
}
