package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/firefly-engineering/kraftcheck/internal/logging"
)

const (
	DefaultHost           = "localhost"
	DefaultDialTimeout    = 2 * time.Second
	DefaultRequestTimeout = 5 * time.Second

	// MaxBodySize caps how much of a response body is kept.
	MaxBodySize = 4 << 20
)

// NoErrno marks a failed connection whose error carried no OS error code.
const NoErrno = -1

// Prober checks the network services a running guest exposes on the host.
type Prober struct {
	Host           string
	DialTimeout    time.Duration
	RequestTimeout time.Duration

	client *http.Client
}

// New returns a Prober targeting host with default timeouts.
func New(host string) *Prober {
	if host == "" {
		host = DefaultHost
	}
	return &Prober{
		Host:           host,
		DialTimeout:    DefaultDialTimeout,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// ConnectResult is the outcome of one TCP connection attempt.
type ConnectResult struct {
	Port  int
	OK    bool
	Errno int
	Err   error
}

// ErrnoName returns the symbolic name of Errno, e.g. ECONNREFUSED.
func (r ConnectResult) ErrnoName() string {
	if r.Errno == 0 {
		return "OK"
	}
	if r.Errno == NoErrno {
		return "unknown"
	}
	if name := unix.ErrnoName(syscall.Errno(r.Errno)); name != "" {
		return name
	}
	return "errno " + strconv.Itoa(r.Errno)
}

// Target returns the probed host.
func (p *Prober) Target() string {
	return p.Host
}

// TCP opens and immediately closes a connection to port. A failed
// connection is reported in the result, never as an error.
func (p *Prober) TCP(ctx context.Context, port int) ConnectResult {
	addr := net.JoinHostPort(p.Host, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: p.DialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		r := ConnectResult{Port: port, Errno: errnoOf(err), Err: err}
		logging.Debug("tcp probe failed", "addr", addr, "errno", r.Errno, "error", err)
		return r
	}
	conn.Close()

	logging.Debug("tcp probe succeeded", "addr", addr)
	return ConnectResult{Port: port, OK: true}
}

func errnoOf(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return int(unix.ETIMEDOUT)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return int(unix.ETIMEDOUT)
	}
	return NoErrno
}

// HTTPResult is a response received from the guest.
type HTTPResult struct {
	URL        string
	StatusCode int
	Body       []byte
}

// ConnectionFailure is a request that never produced a response.
type ConnectionFailure struct {
	URL string
	Err error
}

func (e *ConnectionFailure) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.URL, e.Err)
}

func (e *ConnectionFailure) Unwrap() error {
	return e.Err
}

// HTTP issues a single request without a body. Transport failures are
// returned as *ConnectionFailure.
func (p *Prober) HTTP(ctx context.Context, method string, port int, uri string) (*HTTPResult, error) {
	url := "http://" + net.JoinHostPort(p.Host, strconv.Itoa(port)) + uri

	ctx, cancel := context.WithTimeout(ctx, p.requestTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building %s %s: %w", method, url, err)
	}

	resp, err := p.httpClient().Do(req)
	if err != nil {
		logging.Debug("http probe failed", "method", method, "url", url, "error", err)
		return nil, &ConnectionFailure{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, &ConnectionFailure{URL: url, Err: fmt.Errorf("reading body: %w", err)}
	}

	logging.Debug("http probe succeeded", "method", method, "url", url, "status", resp.StatusCode, "bytes", len(body))
	return &HTTPResult{URL: url, StatusCode: resp.StatusCode, Body: body}, nil
}

func (p *Prober) requestTimeout() time.Duration {
	if p.RequestTimeout <= 0 {
		return DefaultRequestTimeout
	}
	return p.RequestTimeout
}

func (p *Prober) httpClient() *http.Client {
	if p.client == nil {
		p.client = &http.Client{
			Transport: &http.Transport{
				DialContext:       (&net.Dialer{Timeout: p.DialTimeout}).DialContext,
				DisableKeepAlives: true,
			},
		}
	}
	return p.client
}
