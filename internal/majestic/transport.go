package majestic

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultReadTimeout    = 60 * time.Second
	idleConnTimeout       = 90 * time.Second
)

// newHTTPClient builds a client whose connect phase is bounded by connectTimeout
// and whose every socket read is bounded by readTimeout.
func newHTTPClient(verifySSL bool, connectTimeout, readTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: connectTimeout}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &readDeadlineConn{Conn: conn, timeout: readTimeout}, nil
		},
		TLSHandshakeTimeout: connectTimeout,
		IdleConnTimeout:     idleConnTimeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !verifySSL, //nolint:gosec // controlled by verify_ssl
		},
	}

	return &http.Client{Transport: transport}
}

// readDeadlineConn refreshes the read deadline before each Read.
type readDeadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *readDeadlineConn) Read(b []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}
