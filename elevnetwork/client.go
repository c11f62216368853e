package elevnetwork

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"elevdispatch/common"
	"elevdispatch/elevlog"

	quic "github.com/quic-go/quic-go"
)

var ErrClientClosed = errors.New("control client closed")

// Client speaks the control protocol to a Server. Replies are matched to
// commands by sequence number; pushed events go to the onEvent callback.
type Client struct {
	conn      *quic.Conn
	stream    *quic.Stream
	frameSize int
	sessionID uint32
	onEvent   func(elevlog.Event)

	wmu sync.Mutex
	seq atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan Message
	done    chan struct{}
}

func Dial(ctx context.Context, addr string, onEvent func(elevlog.Event)) (*Client, error) {
	conn, st, err := DialQUIC(ctx, addr, DefaultQUICConfig(), 3*time.Second)
	if err != nil {
		return nil, err
	}
	if err := writeHello(st, uint32(os.Getpid()), QUIC_FRAME_SIZE); err != nil {
		CloseQUIC(conn, st, "hello failed")
		return nil, err
	}
	id, err := readHello(st, QUIC_FRAME_SIZE)
	if err != nil {
		CloseQUIC(conn, st, "hello failed")
		return nil, err
	}

	c := &Client{
		conn:      conn,
		stream:    st,
		frameSize: QUIC_FRAME_SIZE,
		sessionID: id,
		onEvent:   onEvent,
		pending:   make(map[uint64]chan Message),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) SessionID() uint32 { return c.sessionID }

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		close(c.done)
		c.pending = nil
		c.mu.Unlock()
	}()
	_ = ReadFixedFramesQUIC(c.conn.Context(), c.stream, c.frameSize, func(frame []byte) {
		var msg Message
		if err := decodeFrame(frame, &msg); err != nil {
			return
		}
		switch msg.Type {
		case TypeEvent:
			if c.onEvent != nil && msg.Event != nil {
				c.onEvent(*msg.Event)
			}
		case TypeReply:
			c.mu.Lock()
			ch := c.pending[msg.Seq]
			delete(c.pending, msg.Seq)
			c.mu.Unlock()
			if ch != nil {
				ch <- msg
			}
		}
	})
}

// Do sends cmd and waits for its reply. cmd.Seq is assigned here.
func (c *Client) Do(ctx context.Context, cmd Command) (Message, error) {
	cmd.Seq = c.seq.Add(1)
	ch := make(chan Message, 1)

	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return Message{}, ErrClientClosed
	}
	c.pending[cmd.Seq] = ch
	c.mu.Unlock()

	forget := func() {
		c.mu.Lock()
		if c.pending != nil {
			delete(c.pending, cmd.Seq)
		}
		c.mu.Unlock()
	}

	payload, err := encodeFrame(cmd)
	if err != nil {
		forget()
		return Message{}, err
	}
	c.wmu.Lock()
	_, err = WriteFixedFrameQUIC(c.stream, payload, c.frameSize, writeTimeout)
	c.wmu.Unlock()
	if err != nil {
		forget()
		return Message{}, err
	}

	select {
	case msg := <-ch:
		if msg.Error != "" {
			return msg, fmt.Errorf("%s: %s", cmd.Op, msg.Error)
		}
		return msg, nil
	case <-c.done:
		return Message{}, ErrClientClosed
	case <-ctx.Done():
		forget()
		return Message{}, ctx.Err()
	}
}

func (c *Client) Call(ctx context.Context, floor int, dir common.Direction) (common.Result, error) {
	return c.result(ctx, Command{Op: OpCall, Floor: floor, Direction: dir})
}

func (c *Client) Press(ctx context.Context, floor int, car int) (common.Result, error) {
	return c.result(ctx, Command{Op: OpPress, Floor: floor, Car: car})
}

func (c *Client) result(ctx context.Context, cmd Command) (common.Result, error) {
	msg, err := c.Do(ctx, cmd)
	if err != nil {
		return 0, err
	}
	if msg.Result == nil {
		return 0, fmt.Errorf("%s: reply without result", cmd.Op)
	}
	return *msg.Result, nil
}

func (c *Client) Status(ctx context.Context) ([]common.CarSnapshot, error) {
	msg, err := c.Do(ctx, Command{Op: OpStatus})
	if err != nil {
		return nil, err
	}
	return msg.Snapshots, nil
}

// Subscribe starts event pushes. Up to backlog past events are delivered to
// onEvent first.
func (c *Client) Subscribe(ctx context.Context, backlog int) error {
	_, err := c.Do(ctx, Command{Op: OpSubscribe, Backlog: backlog})
	return err
}

func (c *Client) Close() error {
	CloseQUIC(c.conn, c.stream, "bye")
	return nil
}
