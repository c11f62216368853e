package elevnetwork

import (
	"context"
	"fmt"

	"elevdispatch/common"
	"elevdispatch/elevlog"

	quic "github.com/quic-go/quic-go"
	"github.com/rs/zerolog"
)

// Facade is the part of the dispatch system exposed over the control plane.
type Facade interface {
	SubmitExternalCall(floor int, dir common.Direction) common.Result
	SubmitInternalRequest(floor int, carID int) common.Result
	SnapshotAll() []common.CarSnapshot
	Events() *elevlog.Stream
}

type Server struct {
	facade   Facade
	log      zerolog.Logger
	sessions *SessionManager
	quicConf *quic.Config
}

func NewServer(facade Facade, log zerolog.Logger) *Server {
	return &Server{
		facade:   facade,
		log:      log.With().Str("component", "control").Logger(),
		sessions: NewSessionManager(QUIC_FRAME_SIZE),
		quicConf: DefaultQUICConfig(),
	}
}

func (s *Server) Sessions() *SessionManager { return s.sessions }

// ListenAndServe blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := ListenQUIC(addr, s.quicConf)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve takes ownership of ln and closes it on return.
func (s *Server) Serve(ctx context.Context, ln *quic.Listener) error {
	defer ln.Close()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("control server listening")

	go s.forwardEvents(ctx)

	return AcceptQUIC(ctx, ln, func(conn *quic.Conn) {
		s.handleConn(ctx, conn)
	})
}

func (s *Server) forwardEvents(ctx context.Context) {
	ch, cancel := s.facade.Events().Subscribe(256)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			ev := ev
			if failed := s.sessions.Broadcast(Message{Type: TypeEvent, Event: &ev}); failed > 0 {
				s.log.Debug().Int("failed", failed).Msg("event push failed")
			}
		}
	}
}

func (s *Server) handleConn(ctx context.Context, conn *quic.Conn) {
	st, err := conn.AcceptStream(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "no stream")
		return
	}

	tag, err := readHello(st, s.sessions.frameSize)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("hello failed")
		CloseQUIC(conn, st, "hello failed")
		return
	}
	sess := s.sessions.add(st, tag)
	defer s.sessions.remove(sess.id)

	if err := writeHello(st, sess.id, s.sessions.frameSize); err != nil {
		CloseQUIC(conn, st, "hello failed")
		return
	}
	s.log.Info().Uint32("session", sess.id).Uint32("client", tag).Str("remote", conn.RemoteAddr().String()).Msg("session opened")

	go func() {
		select {
		case <-ctx.Done():
			CloseQUIC(conn, st, "shutdown")
		case <-conn.Context().Done():
		}
	}()

	err = ReadFixedFramesQUIC(conn.Context(), st, s.sessions.frameSize, func(frame []byte) {
		var cmd Command
		if err := decodeFrame(frame, &cmd); err != nil {
			_ = sess.send(Message{Type: TypeReply, Error: err.Error()})
			return
		}
		if err := sess.send(s.handle(sess, cmd)); err != nil {
			s.log.Debug().Err(err).Uint32("session", sess.id).Msg("reply failed")
		}
	})
	if err != nil && ctx.Err() == nil {
		s.log.Debug().Err(err).Uint32("session", sess.id).Msg("session read ended")
	}
	CloseQUIC(conn, st, "session closed")
	s.log.Info().Uint32("session", sess.id).Msg("session closed")
}

// replay pushes up to n past events to a session that is about to
// subscribe. Events emitted between replay and subscription can be missed.
func (s *Server) replay(sess *session, n int) {
	for _, ev := range s.facade.Events().Recent(n) {
		ev := ev
		if err := sess.send(Message{Type: TypeEvent, Event: &ev}); err != nil {
			s.log.Debug().Err(err).Uint32("session", sess.id).Msg("backlog push failed")
			return
		}
	}
}

// handle executes one command and builds its reply.
func (s *Server) handle(sess *session, cmd Command) Message {
	reply := Message{Type: TypeReply, Seq: cmd.Seq}
	result := func(r common.Result) Message {
		reply.Result = &r
		return reply
	}

	switch cmd.Op {
	case OpCall:
		return result(s.facade.SubmitExternalCall(cmd.Floor, cmd.Direction))
	case OpPress:
		return result(s.facade.SubmitInternalRequest(cmd.Floor, cmd.Car))
	case OpStatus:
		reply.Snapshots = s.facade.SnapshotAll()
	case OpSubscribe:
		s.replay(sess, cmd.Backlog)
		sess.subscribed.Store(true)
	case OpUnsubscribe:
		sess.subscribed.Store(false)
	default:
		reply.Error = fmt.Sprintf("unknown op %q", cmd.Op)
	}
	return reply
}
