package basex

import (
	"bufio"
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ca-srg/treesearch/internal/types"
)

// Session is an open connection to a BaseX server. It is not safe for
// concurrent use.
type Session interface {
	Execute(ctx context.Context, xquery string) (string, error)
	Close() error
}

// Connector opens sessions. Every call opens a fresh connection; sessions
// are never pooled.
type Connector interface {
	Connect(ctx context.Context, info types.ServerInfo) (Session, error)
}

// Dialer connects to BaseX servers over the client/server protocol.
type Dialer struct {
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewDialer creates a Dialer
func NewDialer(timeout time.Duration, logger *zap.Logger) *Dialer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dialer{Timeout: timeout, Logger: logger}
}

// Connect opens and authenticates a session.
func (d *Dialer) Connect(ctx context.Context, info types.ServerInfo) (Session, error) {
	return Open(ctx, info, d.Timeout, d.Logger)
}

// Client implements Session for one TCP connection.
type Client struct {
	conn   net.Conn
	r      *bufio.Reader
	w      *bufio.Writer
	addr   string
	logger *zap.Logger
	mu     sync.Mutex
	closed bool
}

// Open dials the server and performs the digest handshake.
func Open(ctx context.Context, info types.ServerInfo, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if info.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", info.Address())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", info.Address(), err)
	}

	c := &Client{
		conn:   conn,
		r:      bufio.NewReader(conn),
		w:      bufio.NewWriter(conn),
		addr:   info.Address(),
		logger: logger,
	}

	if err := c.withDeadline(ctx, timeout, func() error {
		return c.authenticate(info.Username, info.Password)
	}); err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.Debug("basex session opened", zap.String("addr", c.addr), zap.String("user", info.Username))
	return c, nil
}

func (c *Client) authenticate(username, password string) error {
	challenge, err := c.readString()
	if err != nil {
		return fmt.Errorf("read auth challenge: %w", err)
	}

	var digest string
	if realm, nonce, ok := strings.Cut(challenge, ":"); ok {
		digest = md5Hex(md5Hex(username+":"+realm+":"+password) + nonce)
	} else {
		// servers before 8.0 send a bare timestamp
		digest = md5Hex(md5Hex(password) + challenge)
	}

	if err := c.writeString(username); err != nil {
		return err
	}
	if err := c.writeString(digest); err != nil {
		return err
	}
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("send credentials: %w", err)
	}

	ok, err := c.readStatus()
	if err != nil {
		return fmt.Errorf("read auth status: %w", err)
	}
	if !ok {
		return ErrAuthentication
	}
	return nil
}

// Execute runs an XQuery expression and returns its serialized result.
// Errors are *QueryError and carry the query text.
func (c *Client) Execute(ctx context.Context, xquery string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", NewQueryError(xquery, ErrClosed)
	}
	if strings.IndexByte(xquery, 0) >= 0 {
		return "", NewQueryError(xquery, fmt.Errorf("query contains a NUL byte"))
	}

	var result string
	err := c.withDeadline(ctx, 0, func() error {
		if err := c.writeString("XQUERY " + xquery); err != nil {
			return err
		}
		if err := c.w.Flush(); err != nil {
			return fmt.Errorf("send query: %w", err)
		}

		var err error
		result, err = c.readString()
		if err != nil {
			return fmt.Errorf("read result: %w", err)
		}
		info, err := c.readString()
		if err != nil {
			return fmt.Errorf("read info: %w", err)
		}
		ok, err := c.readStatus()
		if err != nil {
			return fmt.Errorf("read status: %w", err)
		}
		if !ok {
			return &ServerError{Message: strings.TrimSpace(info)}
		}
		return nil
	})
	if err != nil {
		return "", NewQueryError(xquery, err)
	}
	return result, nil
}

// Close ends the session. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	if err := c.writeString("exit"); err == nil {
		_ = c.w.Flush()
	}
	c.logger.Debug("basex session closed", zap.String("addr", c.addr))
	return c.conn.Close()
}

// withDeadline applies the context deadline, or fallback when the context
// has none, to the socket for the duration of fn.
func (c *Client) withDeadline(ctx context.Context, fallback time.Duration, fn func() error) error {
	deadline, ok := ctx.Deadline()
	if !ok && fallback > 0 {
		deadline, ok = time.Now().Add(fallback), true
	}
	if ok {
		if err := c.conn.SetDeadline(deadline); err != nil {
			return err
		}
		defer func() { _ = c.conn.SetDeadline(time.Time{}) }()
	}
	return fn()
}

func (c *Client) writeString(s string) error {
	if _, err := c.w.WriteString(s); err != nil {
		return err
	}
	return c.w.WriteByte(0)
}

// readString reads a NUL-terminated string. 0xFF escapes a literal 0x00 or 0xFF.
func (c *Client) readString() (string, error) {
	var buf bytes.Buffer
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return "", err
		}
		switch b {
		case 0:
			return buf.String(), nil
		case 0xFF:
			b, err = c.r.ReadByte()
			if err != nil {
				return "", err
			}
		}
		buf.WriteByte(b)
	}
}

func (c *Client) readStatus() (bool, error) {
	b, err := c.r.ReadByte()
	if err != nil {
		return false, err
	}
	return b == 0, nil
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
