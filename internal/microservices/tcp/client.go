package tcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"wmshub/internal/microservices/tcp/frame"
)

// Client speaks the warehouse protocol over one TCP connection. It is what
// upstream services (and the tests) use to talk to the server.
type Client struct {
	conn       net.Conn
	reader     *bufio.Reader
	maxPayload uint32
	writeMu    sync.Mutex
}

// Dial connects to a warehouse server.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	return &Client{
		conn:       conn,
		reader:     bufio.NewReader(conn),
		maxPayload: frame.DefaultMaxPayload,
	}, nil
}

// Send encodes body as JSON and writes it as one frame. A nil body is sent
// as an empty object.
func (c *Client) Send(t MessageType, body any) error {
	payload := []byte("{}")
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", t, err)
		}
	}
	return c.SendRaw(uint32(t), payload)
}

// SendRaw writes a frame with an arbitrary code and payload.
func (c *Client) SendRaw(msgType uint32, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return frame.Write(c.conn, frame.Frame{Type: msgType, Payload: payload})
}

// Receive blocks for the next frame, response or broadcast.
func (c *Client) Receive() (frame.Frame, error) {
	return frame.Read(c.reader, c.maxPayload)
}

// Request sends one request and returns the next frame that is not a
// package update broadcast. Broadcasts seen on the way are passed to
// onUpdate when it is non-nil.
func (c *Client) Request(t MessageType, body any, onUpdate func(PackageUpdate)) (frame.Frame, error) {
	if err := c.Send(t, body); err != nil {
		return frame.Frame{}, err
	}
	for {
		f, err := c.Receive()
		if err != nil {
			return frame.Frame{}, err
		}
		if update, ok := DecodeUpdate(f); ok {
			if onUpdate != nil {
				onUpdate(update)
			}
			continue
		}
		return f, nil
	}
}

// SetDeadline bounds the next reads and writes.
func (c *Client) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// DecodeUpdate reports whether f is a PACKAGE_UPDATE broadcast and decodes it.
// Broadcasts share code 0x02 with PACKAGE_PROCESSED responses, so the payload
// marker decides.
func DecodeUpdate(f frame.Frame) (PackageUpdate, bool) {
	if MessageType(f.Type) != MsgPackageUpdate || !bytes.Contains(f.Payload, []byte(PackageUpdateType)) {
		return PackageUpdate{}, false
	}
	var u PackageUpdate
	if err := json.Unmarshal(f.Payload, &u); err != nil || u.Type != PackageUpdateType {
		return PackageUpdate{}, false
	}
	return u, true
}
