package airmedia

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/KevinKickass/airmedia-bridge/internal/transport"
	"github.com/KevinKickass/airmedia-bridge/internal/types"
	"go.uber.org/zap"
)

const (
	deviceURI          = "Device/"
	defaultPingTimeout = 5 * time.Second
)

// HTTPClient is the request capability the adapter needs from the host.
type HTTPClient interface {
	Get(ctx context.Context, uri string, headers http.Header) ([]byte, error)
	Post(ctx context.Context, uri string, body string, headers http.Header) ([]byte, error)
}

// Adapter talks to one Crestron AirMedia unit. Calls are synchronous and
// the caller is expected to serialize them per device.
type Adapter struct {
	conn   types.ConnectionConfig
	client HTTPClient
	logger *zap.Logger
	now    func() time.Time
	dial   func(ctx context.Context, network, address string) (net.Conn, error)
}

// New builds an adapter with its own HTTPS session to the device.
func New(conn types.ConnectionConfig, logger *zap.Logger) (*Adapter, error) {
	client, err := transport.NewClient(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create device client: %w", err)
	}
	return NewWithClient(conn, client, logger), nil
}

// NewWithClient builds an adapter on top of an existing HTTPClient.
func NewWithClient(conn types.ConnectionConfig, client HTTPClient, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := conn.Timeout
	if timeout <= 0 || timeout > defaultPingTimeout {
		timeout = defaultPingTimeout
	}
	dialer := &net.Dialer{Timeout: timeout}

	return &Adapter{
		conn:   conn,
		client: client,
		logger: logger.With(zap.String("host", conn.Host)),
		now:    time.Now,
		dial:   dialer.DialContext,
	}
}

// Authenticate logs in with the configured credentials. A 403 from the
// device becomes a NotAuthorizedError; every other failure is returned as is.
func (a *Adapter) Authenticate(ctx context.Context) error {
	form := url.Values{}
	form.Set("login", a.conn.Login)
	form.Set("passwd", a.conn.Password)

	_, err := a.client.Post(ctx, loginURI, form.Encode(), a.headers(http.MethodPost, loginURI))
	if err != nil {
		var transportErr *types.TransportError
		if errors.As(err, &transportErr) && transportErr.StatusCode == http.StatusForbidden {
			return &types.NotAuthorizedError{Message: "username and password combination is invalid", Err: err}
		}
		return err
	}
	return nil
}

// GetMultipleStatistics logs in, reads /Device/ and returns the flattened
// statistics together with the reboot and time sync controls.
func (a *Adapter) GetMultipleStatistics(ctx context.Context) (*types.ExtendedStatistics, error) {
	if err := a.Authenticate(ctx); err != nil {
		return nil, err
	}

	raw, err := a.client.Get(ctx, deviceURI, a.headers(http.MethodGet, deviceURI))
	if err != nil {
		return nil, err
	}

	doc, err := decodeDocument(raw)
	if err != nil {
		return nil, &types.ParseError{Err: err}
	}

	stats, err := Flatten(doc)
	if err != nil {
		return nil, err
	}

	now := a.now()
	controls := make([]types.AdvancedControllableProperty, 0, len(deviceControls))
	for _, c := range deviceControls {
		controls = append(controls, c.property(now))
		stats[c.name] = idleValue
	}

	a.logger.Debug("Device statistics collected", zap.Int("statistics", len(stats)))

	return &types.ExtendedStatistics{
		Statistics:             stats,
		ControllableProperties: controls,
	}, nil
}

// Ping measures how long a TCP connect to the device's web port takes.
func (a *Adapter) Ping(ctx context.Context) (time.Duration, error) {
	address := net.JoinHostPort(a.conn.Host, strconv.Itoa(a.port()))

	start := time.Now()
	conn, err := a.dial(ctx, "tcp", address)
	if err != nil {
		return 0, &types.TransportError{Method: "PING", URI: address, Err: err}
	}
	elapsed := time.Since(start)
	_ = conn.Close()

	return elapsed, nil
}

func (a *Adapter) port() int {
	if a.conn.Port > 0 {
		return a.conn.Port
	}
	if strings.EqualFold(a.conn.Protocol, "http") {
		return 80
	}
	return 443
}

func (a *Adapter) headers(method, uri string) http.Header {
	return RequestHeaders(a.conn.Host, method, uri, nil)
}
