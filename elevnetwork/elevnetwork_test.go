package elevnetwork

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"elevdispatch/common"
	"elevdispatch/elevlog"

	"github.com/rs/zerolog"
)

type fakeFacade struct {
	events *elevlog.Stream

	mu    sync.Mutex
	calls []Command
}

func newFakeFacade() *fakeFacade {
	return &fakeFacade{events: elevlog.NewStream(zerolog.Nop(), 16)}
}

func (f *fakeFacade) SubmitExternalCall(floor int, dir common.Direction) common.Result {
	f.mu.Lock()
	f.calls = append(f.calls, Command{Op: OpCall, Floor: floor, Direction: dir})
	f.mu.Unlock()
	if floor == 1 && dir == common.DirDown {
		return common.RejectedInvalidDirection
	}
	return common.Accepted
}

func (f *fakeFacade) SubmitInternalRequest(floor int, carID int) common.Result {
	if carID > 2 {
		return common.RejectedInvalidCar
	}
	return common.Accepted
}

func (f *fakeFacade) SnapshotAll() []common.CarSnapshot {
	return []common.CarSnapshot{
		{ID: 0, Floor: 4, Direction: common.DirUp, Status: common.StatusMoving, Pending: []int{7}},
		{ID: 1, Floor: 1, Status: common.StatusIdle},
	}
}

func (f *fakeFacade) Events() *elevlog.Stream { return f.events }

func TestFixedFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payloads := [][]byte{[]byte(`{"op":"status"}`), []byte(`{"op":"call","floor":3}`)}
	for _, p := range payloads {
		n, err := WriteFixedFrameQUIC(&buf, p, 64, 0)
		if err != nil || n != 64 {
			t.Fatalf("WriteFixedFrameQUIC = %d, %v", n, err)
		}
	}

	var got [][]byte
	err := ReadFixedFramesQUIC(context.Background(), &buf, 64, func(frame []byte) {
		got = append(got, common.TrimZeros(frame))
	})
	if err != nil {
		t.Fatalf("ReadFixedFramesQUIC: %v", err)
	}
	if len(got) != 2 || !bytes.Equal(got[0], payloads[0]) || !bytes.Equal(got[1], payloads[1]) {
		t.Errorf("frames = %q", got)
	}
}

func TestWriteFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	if _, err := WriteFixedFrameQUIC(&buf, make([]byte, 65), 64, 0); err == nil {
		t.Error("expected error for oversized payload")
	}
}

func TestHelloFrame(t *testing.T) {
	var buf bytes.Buffer
	if err := writeHello(&buf, 42, 32); err != nil {
		t.Fatalf("writeHello: %v", err)
	}
	id, err := readHello(&buf, 32)
	if err != nil || id != 42 {
		t.Errorf("readHello = %d, %v", id, err)
	}
	if _, ok := decodeHelloFrame(encodeHelloFrame(0)); ok {
		t.Error("hello with id 0 accepted")
	}
	if _, ok := decodeHelloFrame([]byte("garbage!")); ok {
		t.Error("hello with bad magic accepted")
	}
}

func TestHandleCommands(t *testing.T) {
	facade := newFakeFacade()
	srv := NewServer(facade, zerolog.Nop())
	var out bytes.Buffer
	sess := srv.sessions.add(&out, 7)

	reply := srv.handle(sess, Command{Seq: 1, Op: OpCall, Floor: 1, Direction: common.DirDown})
	if reply.Seq != 1 || reply.Result == nil || *reply.Result != common.RejectedInvalidDirection {
		t.Errorf("call reply = %+v", reply)
	}

	reply = srv.handle(sess, Command{Seq: 2, Op: OpPress, Floor: 3, Car: 5})
	if reply.Result == nil || *reply.Result != common.RejectedInvalidCar {
		t.Errorf("press reply = %+v", reply)
	}

	reply = srv.handle(sess, Command{Seq: 3, Op: OpStatus})
	if len(reply.Snapshots) != 2 || reply.Snapshots[0].Pending[0] != 7 {
		t.Errorf("status reply = %+v", reply)
	}

	reply = srv.handle(sess, Command{Seq: 4, Op: "teleport"})
	if reply.Error == "" {
		t.Error("unknown op did not produce an error")
	}

	srv.handle(sess, Command{Seq: 5, Op: OpSubscribe})
	if !sess.subscribed.Load() {
		t.Error("session not subscribed")
	}
	if out.Len() != 0 {
		t.Errorf("subscribe without backlog wrote %d bytes", out.Len())
	}
}

func TestSubscribeReplaysBacklog(t *testing.T) {
	facade := newFakeFacade()
	for _, text := range []string{"first", "second", "third"} {
		facade.events.Emit(elevlog.EventMoved, 0, "", text)
	}
	srv := NewServer(facade, zerolog.Nop())
	var out bytes.Buffer
	sess := srv.sessions.add(&out, 7)

	reply := srv.handle(sess, Command{Seq: 1, Op: OpSubscribe, Backlog: 2})
	if reply.Error != "" || !sess.subscribed.Load() {
		t.Fatalf("subscribe reply = %+v", reply)
	}

	var texts []string
	err := ReadFixedFramesQUIC(context.Background(), &out, QUIC_FRAME_SIZE, func(frame []byte) {
		var msg Message
		if err := decodeFrame(frame, &msg); err != nil || msg.Type != TypeEvent || msg.Event == nil {
			t.Errorf("backlog frame = %+v, %v", msg, err)
			return
		}
		texts = append(texts, msg.Event.Text)
	})
	if err != nil {
		t.Fatalf("ReadFixedFramesQUIC: %v", err)
	}
	if len(texts) != 2 || texts[0] != "second" || texts[1] != "third" {
		t.Errorf("backlog = %v, expected [second third]", texts)
	}
}

func TestMessageSurvivesFrame(t *testing.T) {
	res := common.Accepted
	msg := Message{Type: TypeReply, Seq: 9, Result: &res, Snapshots: newFakeFacade().SnapshotAll()}
	payload, err := encodeFrame(msg)
	if err != nil {
		t.Fatal(err)
	}
	frame := make([]byte, QUIC_FRAME_SIZE)
	copy(frame, payload)

	var got Message
	if err := decodeFrame(frame, &got); err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if got.Result == nil || *got.Result != common.Accepted || got.Snapshots[0].Status != common.StatusMoving {
		t.Errorf("decoded = %+v", got)
	}
}

func TestBroadcastOnlySubscribed(t *testing.T) {
	sm := NewSessionManager(256)
	var a, b bytes.Buffer
	sa := sm.add(&a, 1)
	sm.add(&b, 2)
	sa.subscribed.Store(true)

	ev := elevlog.Event{Kind: elevlog.EventMoved, Car: 0, Text: "car 0 moved to floor 2 (up)"}
	if failed := sm.Broadcast(Message{Type: TypeEvent, Event: &ev}); failed != 0 {
		t.Errorf("Broadcast failed %d writes", failed)
	}
	if a.Len() != 256 || b.Len() != 0 {
		t.Errorf("written bytes a=%d b=%d", a.Len(), b.Len())
	}

	sm.remove(sa.id)
	if conns := sm.Connected(); len(conns) != 1 || conns[0].ID != 2 || conns[0].Client != 2 {
		t.Errorf("Connected = %+v", conns)
	}
}

func TestClientServerLoopback(t *testing.T) {
	ln, err := ListenQUIC("127.0.0.1:0", DefaultQUICConfig())
	if err != nil {
		t.Skipf("udp loopback unavailable: %v", err)
	}
	facade := newFakeFacade()
	srv := NewServer(facade, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx, ln)

	events := make(chan elevlog.Event, 4)
	dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
	defer dialCancel()
	client, err := Dial(dialCtx, ln.Addr().String(), func(ev elevlog.Event) { events <- ev })
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	res, err := client.Call(dialCtx, 5, common.DirUp)
	if err != nil || res != common.Accepted {
		t.Fatalf("Call = %s, %v", res, err)
	}
	snaps, err := client.Status(dialCtx)
	if err != nil || len(snaps) != 2 {
		t.Fatalf("Status = %v, %v", snaps, err)
	}
	facade.events.Emit(elevlog.EventMoved, 1, "", "car 1 moved to floor 5 (up)")
	if err := client.Subscribe(dialCtx, 8); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	facade.events.Emit(elevlog.EventArrived, 1, "", "car 1 arrived at floor 5")
	for _, want := range []elevlog.EventKind{elevlog.EventMoved, elevlog.EventArrived} {
		select {
		case ev := <-events:
			if ev.Kind != want || ev.Car != 1 {
				t.Errorf("event = %+v, expected %s", ev, want)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("%s event never arrived", want)
		}
	}
}

func TestServerClosesConnOnStreamEOF(t *testing.T) {
	ln, err := ListenQUIC("127.0.0.1:0", DefaultQUICConfig())
	if err != nil {
		t.Skipf("udp loopback unavailable: %v", err)
	}
	srv := NewServer(newFakeFacade(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx, ln)

	dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
	defer dialCancel()
	client, err := Dial(dialCtx, ln.Addr().String(), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	// half-close: the server sees EOF but the connection stays up on our side
	if err := client.stream.Close(); err != nil {
		t.Fatalf("stream close: %v", err)
	}
	select {
	case <-client.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("server kept the connection open after stream EOF")
	}
	deadline := time.Now().Add(time.Second)
	for srv.Sessions().Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := srv.Sessions().Len(); n != 0 {
		t.Errorf("sessions after close = %d", n)
	}
}
