package tcp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"wmshub/internal/microservices/tcp/frame"
)

type ClientConnection struct {
	id          string // unique identifier = key in the manager map
	conn        net.Conn
	addr        string
	connectedAt time.Time
	server      *TCPServer // back reference for dispatcher, manager and limits

	writeMu sync.Mutex    // one frame on the wire at a time (responses and broadcasts)
	limiter *rate.Limiter // nil when rate limiting is disabled

	hbMu          sync.Mutex
	lastHeartbeat time.Time

	closeOnce sync.Once
}

// constructor for ClientConnection
func NewClientConnection(conn net.Conn, server *TCPServer) *ClientConnection {
	now := time.Now()
	c := &ClientConnection{
		id:            uuid.NewString(),
		conn:          conn,
		addr:          conn.RemoteAddr().String(),
		connectedAt:   now,
		server:        server,
		lastHeartbeat: now,
	}
	if server.opts.RateLimit > 0 {
		// the limiter auto depletes tokens when Allow is called and refills over time
		c.limiter = rate.NewLimiter(rate.Limit(server.opts.RateLimit), server.opts.RateBurst)
	}
	return c
}

func (c *ClientConnection) ID() string             { return c.id }
func (c *ClientConnection) RemoteAddr() string     { return c.addr }
func (c *ClientConnection) ConnectedAt() time.Time { return c.connectedAt }

// Heartbeat records the last time the client proved it was alive.
func (c *ClientConnection) Heartbeat(at time.Time) {
	c.hbMu.Lock()
	c.lastHeartbeat = at
	c.hbMu.Unlock()
}

func (c *ClientConnection) LastHeartbeat() time.Time {
	c.hbMu.Lock()
	defer c.hbMu.Unlock()
	return c.lastHeartbeat
}

// Listen reads frames until the peer goes away or the stream is corrupt.
// Each frame gets exactly one response, written before the next frame is read.
func (c *ClientConnection) Listen() {
	defer c.Close()
	reader := bufio.NewReader(c.conn) // buffered reader for efficient reading
	logger := c.server.logger

	logger.Info("client_started_listening",
		"client_id", c.id,
		"remote_addr", c.addr,
	)

	for {
		f, err := frame.Read(reader, c.server.opts.MaxPayload)
		if err != nil {
			c.logReadError(err)
			return
		}

		// check rate limit
		if c.limiter != nil && !c.limiter.Allow() {
			logger.Warn("rate_limit_exceeded",
				"client_id", c.id,
				"message_type", MessageType(f.Type).String(),
			)
			if err := c.Send(*c.server.dispatcher.ErrorFrame(errRateLimited)); err != nil {
				c.logWriteError(err)
				return
			}
			continue
		}

		res := c.server.dispatcher.Dispatch(c, f.Type, f.Payload)
		if res.Response != nil {
			if err := c.Send(*res.Response); err != nil {
				c.logWriteError(err)
				return
			}
		}
		if res.Event != nil {
			c.server.publish(res.Event.Package)
		}
	}
}

func (c *ClientConnection) logReadError(err error) {
	logger := c.server.logger
	switch {
	case errors.Is(err, io.EOF): // clean close at a frame boundary
		logger.Info("client_disconnected",
			"client_id", c.id,
		)
	case errors.Is(err, net.ErrClosed):
		// closed by us: shutdown or a failed broadcast
	case frame.IsFramingError(err):
		logger.Warn("client_framing_error",
			"client_id", c.id,
			"error", err.Error(),
		)
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			logger.Warn("client_read_timeout",
				"client_id", c.id,
			)
			return
		}
		logger.Error("client_read_error",
			"client_id", c.id,
			"error", err.Error(),
		)
	}
}

func (c *ClientConnection) logWriteError(err error) {
	if errors.Is(err, net.ErrClosed) {
		return
	}
	c.server.logger.Warn("client_write_error",
		"client_id", c.id,
		"error", err.Error(),
	)
}

// Send writes one frame, bounded by the server's write timeout so a stuck
// peer cannot hold the write lock forever.
func (c *ClientConnection) Send(f frame.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.server.opts.WriteTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	defer c.conn.SetWriteDeadline(time.Time{})
	if err := frame.Write(c.conn, f); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// method to close the connection
func (c *ClientConnection) Close() {
	c.closeOnce.Do(func() {
		c.conn.Close()
	})
}
