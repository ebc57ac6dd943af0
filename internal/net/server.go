package net

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"valkyrie/internal/common"
	"valkyrie/internal/engine"
)

// readScratchSize is the per-read buffer size for a session's reader task.
const readScratchSize = 1024

// session is one connected client's transport state: the socket, and the
// queue its writer task drains. Books, order maps, and the engine itself
// are never touched from here — only cmdCh.
type session struct {
	id       uint64
	conn     net.Conn
	reportCh chan sessionReport
	done     chan struct{}
	closeIt  sync.Once
}

type sessionReport struct {
	securityID string
	event      common.MatchEvent
}

func (s *session) close() {
	s.closeIt.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// registry is the concurrent map of session_id → session. It is the only
// cross-task mutable state in the transport; books live solely on the
// engine task.
type registry struct {
	mu       sync.RWMutex
	sessions map[uint64]*session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[uint64]*session)}
}

func (r *registry) put(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.id] = s
}

func (r *registry) get(id uint64) (*session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Server binds a TCP listener and runs the session transport: one reader
// and one writer task per connection, plus a central event demultiplexer.
// The engine itself is a plain collaborator reached through
// Commands()/Events(), never touched directly.
type Server struct {
	address string
	port    int

	eng              *engine.Engine
	decoder          MessageDecoder
	registry         *registry
	nextSessionID    atomic.Uint64
	reportQueueDepth int
}

// New creates a Server bound to address:port, forwarding decoded commands
// to eng and draining eng's event channel back out to sessions.
// reportQueueDepth bounds each session's outbound report queue; a session
// whose queue fills up is disconnected rather than allowed to block the
// demultiplexer.
func New(address string, port int, eng *engine.Engine, reportQueueDepth int) *Server {
	return &Server{
		address:          address,
		port:             port,
		eng:              eng,
		registry:         newRegistry(),
		reportQueueDepth: reportQueueDepth,
	}
}

func (s *Server) nextID() uint64 { return s.nextSessionID.Add(1) }

// Run binds the listener and serves connections until ctx is cancelled.
// It returns once the listener and all session tasks have wound down.
func (s *Server) Run(ctx context.Context) error {
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		return fmt.Errorf("bind listener: %w", err)
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("error closing listener")
		}
	}()

	t.Go(func() error {
		return s.demux(t)
	})

	t.Go(func() error {
		<-t.Dying()
		return listener.Close()
	})

	log.Info().Str("address", s.address).Int("port", s.port).Msg("session transport listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-t.Dying():
				return t.Wait()
			default:
				log.Error().Err(err).Msg("error accepting connection")
				continue
			}
		}

		sess := &session{
			id:       s.nextID(),
			conn:     conn,
			reportCh: make(chan sessionReport, s.reportQueueDepth),
			done:     make(chan struct{}),
		}
		s.registry.put(sess)
		log.Info().Uint64("sessionId", sess.id).Str("remote", conn.RemoteAddr().String()).Msg("session accepted")

		t.Go(func() error { s.writerLoop(sess); return nil })
		t.Go(func() error { s.readerLoop(sess); return nil })
	}
}

// demux is the central single-consumer of eng.Events(), routing each event
// to its owning session's report queue by SessionID. Missing sessions are
// logged and the event is dropped.
func (s *Server) demux(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case ev, ok := <-s.eng.Events():
			if !ok {
				return nil
			}
			sess, found := s.registry.get(ev.MatchEvent.SessionID)
			if !found {
				log.Warn().Uint64("sessionId", ev.MatchEvent.SessionID).Msg("event for unknown session dropped")
				continue
			}
			select {
			case sess.reportCh <- sessionReport{securityID: ev.SecurityID, event: ev.MatchEvent}:
			default:
				log.Warn().Uint64("sessionId", sess.id).Msg("session report queue full, disconnecting")
				s.registry.remove(sess.id)
				sess.close()
			}
		}
	}
}

// readerLoop owns one FrameDecoder per connection and hands every decoded
// frame to handleFrame, which turns order and cancel messages into
// engine.Commands and only logs logon and heartbeat messages.
func (s *Server) readerLoop(sess *session) {
	defer func() {
		s.registry.remove(sess.id)
		sess.close()
	}()

	decoder := NewFrameDecoder()
	buf := make([]byte, readScratchSize)

	for {
		select {
		case <-sess.done:
			return
		default:
		}

		n, err := sess.conn.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Error().Err(err).Uint64("sessionId", sess.id).Msg("session read error")
			}
			return
		}
		decoder.Feed(buf[:n])

		for {
			frame, ok := decoder.NextFrame()
			if !ok {
				break
			}
			s.handleFrame(sess, frame)
		}
	}
}

func (s *Server) handleFrame(sess *session, frame Frame) {
	msg, ok := s.decoder.Decode(frame.MsgType, frame.Body)
	if !ok {
		log.Warn().Uint64("sessionId", sess.id).Uint32("msgType", frame.MsgType).Msg("unknown or malformed message dropped")
		return
	}

	switch m := msg.(type) {
	case LogonMessage:
		log.Info().Uint64("sessionId", sess.id).Msg("logon")
	case HeartbeatMessage:
		log.Debug().Uint64("sessionId", sess.id).Msg("heartbeat")
	case NewOrderSingleMessage:
		cmd := engine.Command{Kind: engine.NewOrderCmd, Cmd: CommandFromNewOrderSingle(m, sess.id)}
		s.eng.Commands() <- cmd
	case CancelOrderMessage:
		cmd := engine.Command{Kind: engine.CancelOrderCmd, Cmd: CommandFromCancelOrder(m, sess.id)}
		s.eng.Commands() <- cmd
	}
}

// writerLoop is the per-session serialized writer task: it owns sess.conn
// for writes and is the only goroutine that ever writes to it.
func (s *Server) writerLoop(sess *session) {
	for {
		select {
		case <-sess.done:
			return
		case rep, ok := <-sess.reportCh:
			if !ok {
				return
			}
			report := ReportFromEvent(rep.securityID, rep.event)
			frame := EncodeFrame(uint32(MsgReport), uint64(rep.event.TID), report.Serialize())
			if _, err := sess.conn.Write(frame); err != nil {
				log.Error().Err(err).Uint64("sessionId", sess.id).Msg("session write error")
				s.registry.remove(sess.id)
				sess.close()
				return
			}
		}
	}
}
