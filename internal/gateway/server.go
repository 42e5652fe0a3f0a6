package gateway

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sssm0ulder/astrobot-sub000/internal/protocol"
	"github.com/sssm0ulder/astrobot-sub000/internal/scheduler"
	"github.com/sssm0ulder/astrobot-sub000/pkg/config"
)

// Server is the plain goroutine-per-connection gateway
type Server struct {
	config   *config.GatewayConfig
	conns    *Conns
	timers   *scheduler.Timers
	handler  *Handler
	logger   *zap.Logger
	listener net.Listener
	wg       sync.WaitGroup
	stopCh   chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewServer creates a new gateway server
func NewServer(cfg *config.GatewayConfig, conns *Conns, timers *scheduler.Timers, handler *Handler, logger *zap.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:  cfg,
		conns:   conns,
		timers:  timers,
		handler: handler,
		logger:  logger,
		stopCh:  make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts the gateway server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	s.listener = listener
	s.logger.Info("gateway listening", zap.String("addr", addr))

	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

// Stop stops the gateway gracefully
func (s *Server) Stop() {
	close(s.stopCh)
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.wg.Wait()
	s.logger.Info("gateway stopped")
}

// PushToChat delivers a scheduled forecast to every connection serving
// the chat; returns the number of connections written
func (s *Server) PushToChat(chatID int64, push *protocol.PushMessage) int {
	return pushToChat(s.conns, chatID, push, s.logger)
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
				s.logger.Warn("failed to accept connection", zap.Error(err))
				continue
			}
		}

		if s.conns.Count() >= s.config.MaxConnections {
			s.logger.Warn("maximum connections reached, rejecting connection")
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	connectionID := uuid.New().String()
	s.logger.Debug("new connection",
		zap.String("connection_id", connectionID), zap.String("remote", conn.RemoteAddr().String()))

	ident, reader, ok := identify(conn, s.config.IdentifyTimeout, s.logger)
	if !ok {
		return
	}

	if err := s.conns.Register(connectionID, ident.UserID, ident.ChatID, conn); err != nil {
		s.logger.Warn("failed to register client", zap.Error(err))
		sendError(conn)
		return
	}
	defer s.conns.Unregister(connectionID)
	defer s.timers.Cancel(inactivityTimerID(connectionID))

	s.logger.Info("client identified",
		zap.String("connection_id", connectionID),
		zap.Int64("user_id", ident.UserID), zap.Int64("chat_id", ident.ChatID))

	if err := sendMessage(conn, protocol.NewAckMessage(protocol.AckStatusIdentified)); err != nil {
		s.logger.Warn("failed to send ack", zap.Error(err))
		return
	}

	scheduleInactivityTimer(s.timers, s.conns, connectionID, s.config.InactivityTimeout, s.logger)

	conn.SetReadDeadline(time.Time{})

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		line, err := reader.ReadString('\n')
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			s.logger.Debug("connection closed",
				zap.String("connection_id", connectionID), zap.Error(err))
			return
		}

		msg, err := protocol.ParseMessage([]byte(line))
		if err != nil {
			s.logger.Debug("failed to parse message", zap.Error(err))
			sendError(conn)
			continue
		}

		s.handleMessage(ident.UserID, msg, conn)

		s.conns.UpdateActivity(connectionID)
		scheduleInactivityTimer(s.timers, s.conns, connectionID, s.config.InactivityTimeout, s.logger)
	}
}

func (s *Server) handleMessage(userID int64, msg interface{}, conn net.Conn) {
	switch msg.(type) {
	case *protocol.KeepaliveMessage:
		if err := sendMessage(conn, protocol.NewAckMessage(protocol.AckStatusAlive)); err != nil {
			s.logger.Debug("failed to send keepalive ack", zap.Error(err))
		}
	case *protocol.IdentifyMessage:
		// already identified; acknowledge and carry on
		sendMessage(conn, protocol.NewAckMessage(protocol.AckStatusIdentified))
	default:
		result := s.handler.Handle(s.ctx, userID, msg)
		if err := sendMessage(conn, result); err != nil {
			s.logger.Debug("failed to send result", zap.Error(err))
		}
	}
}

// Shared connection helpers used by both server variants.

func identify(conn net.Conn, timeout time.Duration, logger *zap.Logger) (*protocol.IdentifyMessage, *bufio.Reader, bool) {
	conn.SetReadDeadline(time.Now().Add(timeout))

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		logger.Debug("failed to read identify message", zap.Error(err))
		return nil, nil, false
	}

	msg, err := protocol.ParseMessage([]byte(line))
	if err != nil {
		logger.Debug("failed to parse identify message", zap.Error(err))
		sendError(conn)
		return nil, nil, false
	}

	ident, ok := msg.(*protocol.IdentifyMessage)
	if !ok {
		logger.Debug("expected identify message", zap.String("got", fmt.Sprintf("%T", msg)))
		sendError(conn)
		return nil, nil, false
	}

	return ident, reader, true
}

func sendMessage(conn net.Conn, msg interface{}) error {
	data, err := protocol.EncodeMessage(msg)
	if err != nil {
		return err
	}

	_, err = conn.Write(append(data, '\n'))
	return err
}

func sendError(conn net.Conn) {
	sendMessage(conn, protocol.NewAckMessage(protocol.AckStatusError))
}

func inactivityTimerID(connectionID string) string {
	return fmt.Sprintf("inactivity-%s", connectionID)
}

func scheduleInactivityTimer(timers *scheduler.Timers, conns *Conns, connectionID string, timeout time.Duration, logger *zap.Logger) {
	callback := func() {
		logger.Info("inactivity timeout", zap.String("connection_id", connectionID))

		client, exists := conns.Get(connectionID)
		if !exists {
			return
		}

		// Unregister happens in the connection's deferred cleanup
		client.Conn.Close()
	}

	timers.Schedule(inactivityTimerID(connectionID), time.Now().Add(timeout), callback)
}

func pushToChat(conns *Conns, chatID int64, push *protocol.PushMessage, logger *zap.Logger) int {
	delivered := 0
	for _, connID := range conns.GetByChat(chatID) {
		client, exists := conns.Get(connID)
		if !exists {
			continue
		}
		if err := sendMessage(client.Conn, push); err != nil {
			logger.Warn("failed to push forecast",
				zap.String("connection_id", connID), zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}
