package mikrotik

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// Conn is one authenticated API session with the appliance.
// Run must return once Close has been called on the same Conn.
type Conn interface {
	Run(words []string) ([]map[string]string, error)
	Close() error
}

// Dialer opens an authenticated session. Implementations should honor the
// context deadline, but the Client does not rely on it.
type Dialer func(ctx context.Context, addr Address) (Conn, error)

// Param is one =key=value attribute word
type Param struct {
	Key   string
	Value string
}

// Command is a single API command and its attribute words
type Command struct {
	Path   string
	Params []Param
}

// Words renders the command as an API sentence
func (c Command) Words() []string {
	words := make([]string, 0, len(c.Params)+1)
	words = append(words, c.Path)
	for _, p := range c.Params {
		words = append(words, "="+p.Key+"="+p.Value)
	}
	return words
}

// Client runs commands against one appliance, one connection per call.
type Client struct {
	addr Address
	dial Dialer
}

// NewClient creates a client. A nil dialer uses the RouterOS API dialer.
func NewClient(addr Address, dial Dialer) *Client {
	if dial == nil {
		dial = DialRouterOS
	}
	return &Client{addr: addr, dial: dial}
}

// Address returns the appliance address the client targets
func (c *Client) Address() Address {
	return c.addr
}

// Execute connects, runs cmd and disconnects. The configured connect timeout
// bounds the whole call; an earlier caller deadline still wins.
func (c *Client) Execute(ctx context.Context, cmd Command) ([]map[string]string, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	conn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}

	s := &session{conn: conn, addr: c.addr.HostPort()}
	defer s.release()

	return s.run(ctx, cmd)
}

// Probe opens and closes a connection without running a command
func (c *Client) Probe(ctx context.Context) error {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	conn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	s := &session{conn: conn, addr: c.addr.HostPort()}
	s.release()
	return nil
}

func (c *Client) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.addr.Timeout())
}

type dialResult struct {
	conn Conn
	err  error
}

// connect races the dial against the context. A dial that finishes after the
// deadline is closed by its own goroutine and never returned.
func (c *Client) connect(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnectionTimeout, c.addr.HostPort(), err)
	}

	results := make(chan dialResult, 1)
	go func() {
		conn, err := c.dial(ctx, c.addr)
		results <- dialResult{conn: conn, err: err}
	}()

	select {
	case res := <-results:
		if res.err != nil {
			if isTimeout(res.err) {
				return nil, fmt.Errorf("%w: %s: %v", ErrConnectionTimeout, c.addr.HostPort(), res.err)
			}
			return nil, fmt.Errorf("connect %s: %w", c.addr.HostPort(), res.err)
		}
		return res.conn, nil
	case <-ctx.Done():
		go func() {
			if res := <-results; res.conn != nil {
				if err := res.conn.Close(); err != nil {
					logDebug("Closing late connection failed", "addr", c.addr.HostPort(), "error", err)
				}
			}
		}()
		return nil, fmt.Errorf("%w: %s: %v", ErrConnectionTimeout, c.addr.HostPort(), context.Cause(ctx))
	}
}

// session owns an established connection and releases it exactly once
type session struct {
	conn Conn
	addr string
	once sync.Once
}

func (s *session) release() {
	s.once.Do(func() {
		if err := s.conn.Close(); err != nil {
			logDebug("Closing appliance connection failed", "addr", s.addr, "error", err)
		}
	})
}

type runResult struct {
	rows []map[string]string
	err  error
}

func (s *session) run(ctx context.Context, cmd Command) ([]map[string]string, error) {
	results := make(chan runResult, 1)
	go func() {
		rows, err := s.conn.Run(cmd.Words())
		results <- runResult{rows: rows, err: err}
	}()

	select {
	case res := <-results:
		if res.err != nil {
			if errors.Is(res.err, ErrCommandFailure) {
				return nil, fmt.Errorf("%s: %w", cmd.Path, res.err)
			}
			if isTimeout(res.err) {
				return nil, fmt.Errorf("%w: %s: %v", ErrCommandTimeout, cmd.Path, res.err)
			}
			return nil, fmt.Errorf("%s on %s: %w", cmd.Path, s.addr, res.err)
		}
		if res.rows == nil {
			res.rows = []map[string]string{}
		}
		return res.rows, nil
	case <-ctx.Done():
		// Closing unblocks the pending Run; its result is dropped.
		s.release()
		return nil, fmt.Errorf("%w: %s", ErrCommandTimeout, cmd.Path)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// remaining returns the time left before the context deadline, or fallback
func remaining(ctx context.Context, fallback time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			return d
		}
		return time.Millisecond
	}
	return fallback
}
