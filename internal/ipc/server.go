package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"deskdrop/internal/daemon"
	"deskdrop/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. shutdown, when
// set, is called after a Stop request so the hosting process can exit.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger, shutdown func()) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: serverCtx, shutdown: shutdown}
	if err := rpcServer.RegisterName("Deskdrop", srv); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"),
				)
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"),
		)
	}
}

type service struct {
	daemon   *daemon.Daemon
	logger   *slog.Logger
	ctx      context.Context
	shutdown func()
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.Paused = status.Arranger.Paused
	resp.StartedAt = status.StartedAt
	resp.PID = os.Getpid()
	resp.WatchDir = status.WatchDir
	resp.Destination = status.Destination.Dir
	resp.Device = status.Destination.Device
	resp.DeviceCount = status.DeviceCount
	resp.MonitorRunning = status.MonitorRunning
	resp.InFlight = status.Arranger.InFlight
	resp.Moved = status.Arranger.Moved
	resp.Failed = status.Arranger.Failed
	resp.Skipped = status.Arranger.Skipped
	resp.LastTarget = status.Arranger.LastTarget
	resp.LastAt = status.Arranger.LastAt
	resp.History = status.History
	resp.HistoryError = status.HistoryError
	resp.HistoryDBPath = status.HistoryDBPath
	resp.LockPath = status.LockFilePath
	resp.LogPath = status.LogPath
	return nil
}

func (s *service) Pause(_ PauseRequest, resp *PauseResponse) error {
	resp.Changed = s.daemon.Pause()
	return nil
}

func (s *service) Resume(_ ResumeRequest, resp *ResumeResponse) error {
	resp.Changed = s.daemon.Resume()
	return nil
}

func (s *service) Arrange(req ArrangeRequest, resp *ArrangeResponse) error {
	s.logger.Debug("manual arrangement requested", logging.String(logging.FieldPath, req.Path))
	outcome, err := s.daemon.Arrange(s.ctx, req.Path)
	if err != nil && outcome.Error == "" {
		return err
	}
	// Arrangement failures travel in the outcome; net/rpc drops replies
	// that come with an error.
	resp.Outcome = outcome
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	entries, err := s.daemon.History(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Entries = entries
	return nil
}

func (s *service) Devices(_ DevicesRequest, resp *DevicesResponse) error {
	devs, err := s.daemon.Devices(s.ctx)
	if err != nil {
		return err
	}
	status := s.daemon.Status(s.ctx)
	resp.Devices = devs
	resp.Count = status.DeviceCount
	resp.Current = status.Destination.Device
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC", logging.String(logging.FieldEventType, "daemon_stop"))
	if s.shutdown != nil {
		// Let the reply go out before the process exits.
		go s.shutdown()
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
