// protocol.go
// Purpose: Control-plane messages. Every frame after HELLO carries one JSON
// document, zero-padded to the frame size.
package elevnetwork

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"elevdispatch/common"
	"elevdispatch/elevlog"
)

const (
	helloMagic   uint32 = 0x48454C4F // "HELO"
	helloTimeout        = 2 * time.Second
	writeTimeout        = 2 * time.Second
)

const (
	OpCall        = "call"
	OpPress       = "press"
	OpStatus      = "status"
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
)

const (
	TypeReply = "reply"
	TypeEvent = "event"
)

// Command is sent client -> server.
type Command struct {
	Seq       uint64           `json:"seq"`
	Op        string           `json:"op"`
	Floor     int              `json:"floor,omitempty"`
	Direction common.Direction `json:"direction,omitempty"`
	Car       int              `json:"car,omitempty"`
	// subscribe only: recent events replayed before live ones
	Backlog int `json:"backlog,omitempty"`
}

// Message is sent server -> client, either as the reply to a Command with
// the same Seq or as an unsolicited event.
type Message struct {
	Type      string               `json:"type"`
	Seq       uint64               `json:"seq,omitempty"`
	Result    *common.Result       `json:"result,omitempty"`
	Snapshots []common.CarSnapshot `json:"snapshots,omitempty"`
	Error     string               `json:"error,omitempty"`
	Event     *elevlog.Event       `json:"event,omitempty"`
}

func encodeFrame(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return b, nil
}

func decodeFrame(frame []byte, v any) error {
	if err := json.Unmarshal(common.TrimZeros(frame), v); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	return nil
}

func encodeHelloFrame(id uint32) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b[0:4], helloMagic)
	binary.BigEndian.PutUint32(b[4:8], id)
	return b
}

func decodeHelloFrame(frame []byte) (uint32, bool) {
	if len(frame) < 8 || binary.BigEndian.Uint32(frame[0:4]) != helloMagic {
		return 0, false
	}
	id := binary.BigEndian.Uint32(frame[4:8])
	if id == 0 {
		return 0, false
	}
	return id, true
}

func readHello(r io.Reader, frameSize int) (uint32, error) {
	frame, err := ReadOneFrameQUIC(r, frameSize, helloTimeout)
	if err != nil {
		return 0, fmt.Errorf("read hello: %w", err)
	}
	id, ok := decodeHelloFrame(frame)
	if !ok {
		return 0, fmt.Errorf("invalid hello")
	}
	return id, nil
}

func writeHello(w io.Writer, id uint32, frameSize int) error {
	if _, err := WriteFixedFrameQUIC(w, encodeHelloFrame(id), frameSize, helloTimeout); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}
	return nil
}
