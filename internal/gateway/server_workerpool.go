package gateway

import (
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

const (
	defaultWorkerCount  = 10
	defaultJobQueueSize = 1000
)

// ConnectionJob is a unit of work handed to the pool: one parsed
// client message together with the connection it arrived on
type ConnectionJob struct {
	ConnectionID string
	UserID       int64
	ChatID       int64
	Message      interface{}
	Conn         net.Conn
	Timestamp    time.Time
}

// WorkerPoolServer is the gateway variant that decouples socket reads
// from query handling with a fixed worker pool
type WorkerPoolServer struct {
	config   *config.GatewayConfig
	conns    *Conns
	timers   *scheduler.Timers
	handler  *Handler
	logger   *zap.Logger
	listener net.Listener
	jobQueue chan ConnectionJob
	workers  []*Worker
	wg       sync.WaitGroup
	stopCh   chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
}

// Worker processes connection jobs from the shared queue
type Worker struct {
	id     int
	server *WorkerPoolServer
	logger *zap.Logger
}

// NewWorkerPoolServer creates a gateway server backed by a worker pool
func NewWorkerPoolServer(cfg *config.GatewayConfig, conns *Conns, timers *scheduler.Timers, handler *Handler, logger *zap.Logger) *WorkerPoolServer {
	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = defaultWorkerCount
	}
	queueSize := cfg.JobQueueSize
	if queueSize <= 0 {
		queueSize = defaultJobQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPoolServer{
		config:   cfg,
		conns:    conns,
		timers:   timers,
		handler:  handler,
		logger:   logger,
		jobQueue: make(chan ConnectionJob, queueSize),
		workers:  make([]*Worker, workerCount),
		stopCh:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the listener and the worker pool
func (s *WorkerPoolServer) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	s.listener = listener
	s.logger.Info("gateway listening",
		zap.String("addr", addr),
		zap.Int("workers", len(s.workers)), zap.Int("queue_size", cap(s.jobQueue)))

	for i := range s.workers {
		worker := &Worker{id: i, server: s, logger: s.logger}
		s.workers[i] = worker
		s.wg.Add(1)
		go worker.run()
	}

	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

// Stop stops the gateway gracefully, draining the job queue
func (s *WorkerPoolServer) Stop() {
	close(s.stopCh)
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	close(s.jobQueue)
	s.wg.Wait()
	s.logger.Info("gateway stopped")
}

// PushToChat delivers a scheduled forecast to every connection serving
// the chat; returns the number of connections written
func (s *WorkerPoolServer) PushToChat(chatID int64, push *protocol.PushMessage) int {
	return pushToChat(s.conns, chatID, push, s.logger)
}

// QueueDepth reports how many jobs are waiting for a worker
func (s *WorkerPoolServer) QueueDepth() int {
	return len(s.jobQueue)
}

func (s *WorkerPoolServer) acceptConnections() {
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
		go s.readConnection(conn)
	}
}

// readConnection owns the socket: it identifies the client, then reads
// lines and enqueues them for the pool. Only the reader goroutine
// touches the read side of the connection
func (s *WorkerPoolServer) readConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	connectionID := uuid.New().String()

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

		job := ConnectionJob{
			ConnectionID: connectionID,
			UserID:       ident.UserID,
			ChatID:       ident.ChatID,
			Message:      msg,
			Conn:         conn,
			Timestamp:    time.Now(),
		}

		select {
		case s.jobQueue <- job:
		default:
			// queue full, shed load rather than block the reader
			s.logger.Warn("job queue full, dropping message",
				zap.String("connection_id", connectionID))
			sendError(conn)
		}

		s.conns.UpdateActivity(connectionID)
		scheduleInactivityTimer(s.timers, s.conns, connectionID, s.config.InactivityTimeout, s.logger)
	}
}

func (w *Worker) run() {
	defer w.server.wg.Done()

	for job := range w.server.jobQueue {
		w.processJob(job)
	}
}

func (w *Worker) processJob(job ConnectionJob) {
	switch job.Message.(type) {
	case *protocol.KeepaliveMessage:
		if err := sendMessage(job.Conn, protocol.NewAckMessage(protocol.AckStatusAlive)); err != nil {
			w.logger.Debug("failed to send keepalive ack", zap.Error(err))
		}
	case *protocol.IdentifyMessage:
		sendMessage(job.Conn, protocol.NewAckMessage(protocol.AckStatusIdentified))
	default:
		result := w.server.handler.Handle(w.server.ctx, job.UserID, job.Message)
		if err := sendMessage(job.Conn, result); err != nil {
			w.logger.Debug("failed to send result",
				zap.String("connection_id", job.ConnectionID), zap.Error(err))
		}
	}

	if wait := time.Since(job.Timestamp); wait > time.Second {
		w.logger.Warn("slow job",
			zap.Int("worker_id", w.id),
			zap.String("connection_id", job.ConnectionID),
			zap.Duration("queued_for", wait))
	}
}
