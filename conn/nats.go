package conn

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/skeeeon/nats-dashboard-sub001/errors"
	"github.com/skeeeon/nats-dashboard-sub001/metric"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Error variables
var (
	ErrNotConnected = stderrors.New("not connected to NATS")
	ErrCircuitOpen  = stderrors.New("circuit breaker is open")
)

// Client manages a NATS connection with a circuit breaker on connection
// establishment. It implements the Provider interface.
type Client struct {
	url    string
	name   string
	status atomic.Value // ConnectionStatus
	logger *slog.Logger

	conn *nats.Conn

	// Circuit breaker state
	circuitFailures  atomic.Int32
	circuitThreshold int32
	cooldown         atomic.Value // time.Duration
	maxCooldown      time.Duration

	// Connection options
	maxReconnects  int
	reconnectWait  time.Duration
	pingInterval   time.Duration
	connectTimeout time.Duration
	drainTimeout   time.Duration

	// Authentication, cleared on close
	username string
	password string
	token    string

	metrics *metric.Metrics

	onHealthChange func(bool)

	mu     sync.RWMutex
	closed atomic.Bool
}

// NewClient creates a new NATS client with optional configuration.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:              url,
		name:             "nats-dashboard",
		logger:           slog.Default().With("component", "conn"),
		circuitThreshold: 5,
		maxCooldown:      time.Minute,
		maxReconnects:    -1,
		reconnectWait:    2 * time.Second,
		pingInterval:     30 * time.Second,
		connectTimeout:   5 * time.Second,
		drainTimeout:     30 * time.Second,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	c.status.Store(StatusDisconnected)
	c.cooldown.Store(time.Second)

	return c, nil
}

// URL returns the NATS server URL.
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection status.
func (c *Client) Status() ConnectionStatus {
	val := c.status.Load()
	if val == nil {
		return StatusDisconnected
	}
	return val.(ConnectionStatus)
}

func (c *Client) setStatus(status ConnectionStatus) {
	c.status.Store(status)
}

// IsHealthy reports whether the connection is established.
func (c *Client) IsHealthy() bool {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	return c.Status() == StatusConnected && conn != nil && conn.IsConnected()
}

// Connect establishes the connection. It respects the circuit breaker:
// after circuitThreshold consecutive failures further attempts are rejected
// with ErrCircuitOpen until a cooldown elapses.
func (c *Client) Connect(ctx context.Context) error {
	if c.Status() == StatusCircuitOpen {
		return ErrCircuitOpen
	}

	c.setStatus(StatusConnecting)
	c.logger.Info("connecting to NATS", "url", c.url)

	connectDone := make(chan error, 1)
	go func() {
		conn, err := nats.Connect(c.url, c.connectionOptions()...)
		if err != nil {
			connectDone <- err
			return
		}
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		connectDone <- nil
	}()

	select {
	case err := <-connectDone:
		if err != nil {
			c.recordFailure()
			if c.Status() == StatusCircuitOpen {
				return ErrCircuitOpen
			}
			c.setStatus(StatusDisconnected)
			return errors.WrapTransient(err, "Client", "Connect", "establish connection")
		}
	case <-ctx.Done():
		c.recordFailure()
		if c.Status() != StatusCircuitOpen {
			c.setStatus(StatusDisconnected)
		}
		return errors.WrapTransient(ctx.Err(), "Client", "Connect", "connection cancelled")
	}

	c.setStatus(StatusConnected)
	c.resetCircuit()
	if c.metrics != nil {
		c.metrics.NATSConnected.Set(1)
	}
	if c.onHealthChange != nil {
		c.onHealthChange(true)
	}

	c.logger.Info("connected to NATS", "url", c.url)
	return nil
}

func (c *Client) connectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.Name(c.name),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.Timeout(c.connectTimeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
	}

	if c.username != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}

	return opts
}

// Subscribe opens a physical subscription for a subject pattern.
func (c *Client) Subscribe(subject string, handler MessageHandler) (Stream, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return nil, errors.WrapTransient(ErrNotConnected, "Client", "Subscribe", "check connection")
	}

	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "Subscribe", "create subscription")
	}

	return &natsStream{subject: subject, sub: sub}, nil
}

// Publish sends a payload to a subject.
func (c *Client) Publish(_ context.Context, subject string, payload []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return errors.WrapTransient(ErrNotConnected, "Client", "Publish", "check connection")
	}

	return conn.Publish(subject, payload)
}

// RTT returns the round-trip time to the server.
func (c *Client) RTT() (time.Duration, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return 0, ErrNotConnected
	}
	return conn.RTT()
}

// Close drains and closes the connection. Safe to call more than once.
func (c *Client) Close(_ context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	// Clear credentials
	c.password = ""
	c.token = ""
	c.mu.Unlock()

	c.setStatus(StatusDisconnected)
	if c.metrics != nil {
		c.metrics.NATSConnected.Set(0)
	}

	if conn != nil && !conn.IsClosed() {
		if err := conn.Drain(); err != nil {
			conn.Close()
			return errors.WrapTransient(err, "Client", "Close", "drain connection")
		}
	}
	return nil
}

// recordFailure counts a connection failure and opens the circuit when the
// threshold is reached. The circuit closes again after a cooldown that
// doubles on each excursion, capped at maxCooldown.
func (c *Client) recordFailure() {
	failures := c.circuitFailures.Add(1)
	if failures < c.circuitThreshold {
		return
	}

	c.setStatus(StatusCircuitOpen)
	cooldown := c.cooldown.Load().(time.Duration)
	c.logger.Warn("circuit breaker opened",
		"failures", failures,
		"cooldown", cooldown)

	next := cooldown * 2
	if next > c.maxCooldown {
		next = c.maxCooldown
	}
	c.cooldown.Store(next)

	time.AfterFunc(cooldown, func() {
		if c.closed.Load() {
			return
		}
		if c.Status() == StatusCircuitOpen {
			c.setStatus(StatusDisconnected)
			c.circuitFailures.Store(0)
			c.logger.Info("circuit breaker cooldown elapsed, connection attempts allowed")
		}
	})
}

func (c *Client) resetCircuit() {
	c.circuitFailures.Store(0)
	c.cooldown.Store(time.Second)
}

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	if c.closed.Load() {
		return
	}
	c.setStatus(StatusReconnecting)
	if c.metrics != nil {
		c.metrics.NATSConnected.Set(0)
	}
	if c.onHealthChange != nil {
		c.onHealthChange(false)
	}
	c.logger.Warn("disconnected from NATS", "error", err)
}

func (c *Client) handleReconnect(nc *nats.Conn) {
	c.setStatus(StatusConnected)
	if c.metrics != nil {
		c.metrics.NATSConnected.Set(1)
		c.metrics.NATSReconnects.Inc()
	}
	if c.onHealthChange != nil {
		c.onHealthChange(true)
	}
	c.logger.Info("reconnected to NATS", "url", nc.ConnectedUrl())
}

func (c *Client) handleClosed(_ *nats.Conn) {
	if c.closed.Load() {
		return
	}
	c.setStatus(StatusDisconnected)
	if c.metrics != nil {
		c.metrics.NATSConnected.Set(0)
	}
	if c.onHealthChange != nil {
		c.onHealthChange(false)
	}
	c.logger.Warn("NATS connection closed")
}

// natsStream wraps a NATS subscription as a Stream.
type natsStream struct {
	subject string
	sub     *nats.Subscription
	once    sync.Once
}

func (s *natsStream) Subject() string {
	return s.subject
}

func (s *natsStream) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		err = s.sub.Unsubscribe()
	})
	return err
}
