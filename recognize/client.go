// Package recognize provides a speech recognizer client. It sends windows
// of audio over websocket and reads back recognized segments.
package recognize

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/dudk/earshot"
	"github.com/dudk/earshot/log"
	"github.com/dudk/earshot/window"
)

// Message types.
const (
	TypeWindow = "window"
	TypeResult = "result"
	TypeError  = "error"
)

// DefaultDialTimeout is the handshake timeout.
const DefaultDialTimeout = 5 * time.Second

type (
	// Request carries a single window of audio.
	Request struct {
		Type       string `json:"type"`
		Seq        int    `json:"seq"`
		SampleRate int    `json:"sample_rate"`
		Data       string `json:"data"`
	}

	// Response is either recognized segments or an error for the window
	// with the same seq.
	Response struct {
		Type     string    `json:"type"`
		Seq      int       `json:"seq"`
		Segments []Segment `json:"segments,omitempty"`
		Detail   string    `json:"detail,omitempty"`
	}

	// Segment is a piece of recognized text. Offsets are relative to the
	// window start.
	Segment struct {
		Text    string `json:"text"`
		StartMS int64  `json:"start_ms"`
		EndMS   int64  `json:"end_ms"`
	}
)

// Client is a websocket recognizer client. It implements window.Consumer.
// Connection is established on reset and closed on flush.
type Client struct {
	url         string
	header      http.Header
	dialTimeout time.Duration
	format      earshot.Format
	log         logrus.FieldLogger

	mu   sync.Mutex
	conn *websocket.Conn
	seq  int
}

// Option provides a way to set functional parameters to client.
type Option func(*Client)

// WithHeader sets handshake headers.
func WithHeader(h http.Header) Option {
	return func(c *Client) {
		c.header = h
	}
}

// WithDialTimeout sets handshake timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.dialTimeout = d
	}
}

// WithLogger sets logger to client.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// New returns new recognizer client for the websocket url.
func New(url string, options ...Option) *Client {
	c := &Client{
		url:         url,
		header:      http.Header{},
		dialTimeout: DefaultDialTimeout,
		format:      earshot.DefaultFormat,
		log:         log.GetLogger(),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Reset connects to the recognizer.
func (c *Client) Reset(string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.close()
	c.seq = 0
	return c.dial()
}

// Flush closes the connection.
func (c *Client) Flush(string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.close()
}

// Consume sends the window and waits for its result. Lost connection is
// re-established on the next call.
func (c *Client) Consume(ctx context.Context, w earshot.Chunk) ([]window.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		if err := c.dial(); err != nil {
			return nil, err
		}
	}
	c.seq++
	results, err := c.roundtrip(ctx, c.seq, w)
	var rerr *remoteError
	if err != nil && !errors.As(err, &rerr) {
		// connection state is unknown after io failure.
		c.close()
	}
	return results, err
}

type remoteError struct {
	seq    int
	detail string
}

func (e *remoteError) Error() string {
	return fmt.Sprintf("window %d: %s", e.seq, e.detail)
}

func (c *Client) roundtrip(ctx context.Context, seq int, w earshot.Chunk) ([]window.Result, error) {
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return nil, err
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	conn := c.conn
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	err := c.conn.WriteJSON(Request{
		Type:       TypeWindow,
		Seq:        seq,
		SampleRate: c.format.SampleRate,
		Data:       base64.StdEncoding.EncodeToString(w),
	})
	if err != nil {
		return nil, fmt.Errorf("send window %d: %w", seq, err)
	}

	for {
		var resp Response
		if err := c.conn.ReadJSON(&resp); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read window %d: %w", seq, err)
		}
		if resp.Seq != seq {
			c.log.WithFields(logrus.Fields{"seq": resp.Seq, "expected": seq}).Debug("stale response skipped")
			continue
		}
		switch resp.Type {
		case TypeResult:
			return results(resp.Segments), nil
		case TypeError:
			return nil, &remoteError{seq: seq, detail: resp.Detail}
		}
	}
}

func (c *Client) dial() error {
	d := websocket.Dialer{HandshakeTimeout: c.dialTimeout}
	conn, resp, err := d.Dial(c.url, c.header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %w: status %d", c.url, err, resp.StatusCode)
		}
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.conn = conn
	c.log.WithField("url", c.url).Debug("recognizer connected")
	return nil
}

func (c *Client) close() error {
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return conn.Close()
}

func results(segments []Segment) []window.Result {
	r := make([]window.Result, 0, len(segments))
	for _, s := range segments {
		r = append(r, window.Result{
			Text:  s.Text,
			Start: time.Duration(s.StartMS) * time.Millisecond,
			End:   time.Duration(s.EndMS) * time.Millisecond,
		})
	}
	return r
}
