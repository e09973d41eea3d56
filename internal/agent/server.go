package agent

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/Quaternioneer/trezor-agent/internal/audit"
	"github.com/Quaternioneer/trezor-agent/internal/config"
	"github.com/Quaternioneer/trezor-agent/internal/device"
	"github.com/Quaternioneer/trezor-agent/internal/keyring"
	"github.com/Quaternioneer/trezor-agent/internal/util"
)

// Server is a central struct keeping all the dependencies.
// It is initialized with wire, which handles making the new instances of the
// components in the right order. To add a new component, 3 steps are required:
// - declaring it in this struct
// - adding a provider function in providers.go
// - adding the provider's function name to the arguments of wire.Build() in wire.go
//
// Components labeled as `wire:"-"` will be skipped and have to be initialized
// after the InitNewServer call.
type Server struct {
	// skip wire:
	// -> initialized with initManagement()
	Echo *echo.Echo `wire:"-"`

	Config   config.Server
	Registry keyring.Registry
	Backend  device.Backend
	Audit    audit.Logger

	listener net.Listener
	quit     chan struct{}
	closed   bool
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// newServerWithComponents is used by wire to initialize the server components.
func newServerWithComponents(
	cfg config.Server,
	registry keyring.Registry,
	backend device.Backend,
	auditLogger audit.Logger,
) *Server {
	return &Server{
		Config:   cfg,
		Registry: registry,
		Backend:  backend,
		Audit:    auditLogger,
		quit:     make(chan struct{}),
	}
}

// Ready reports whether all collaborators are wired.
func (s *Server) Ready() bool {
	return s.Registry != nil && s.Backend != nil && s.Audit != nil
}

// Listen binds the agent socket and serves connections until Shutdown. Each
// accepted connection runs its own session goroutine; concurrent connections
// are independent. Accepted connections get no read or write deadline, so an
// idle client stays connected.
func (s *Server) Listen(ctx context.Context) error {
	if !s.Ready() {
		return errors.New("server is not ready")
	}

	// A previous crash can leave a stale socket file behind.
	if err := os.Remove(s.Config.SocketPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	listener, err := net.Listen("unix", s.Config.SocketPath)
	if err != nil {
		return err
	}
	// Filesystem permissions are the only access control on the socket.
	if err := os.Chmod(s.Config.SocketPath, 0o600); err != nil {
		_ = listener.Close()
		return err
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	log.Info().Str("socket", s.Config.SocketPath).Msg("Agent listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
			}
			return err
		}

		s.wg.Add(1)
		go s.serveConn(ctx, conn)
	}
}

// serveConn runs one session to completion. A session error is logged and
// drops only this connection; the accept loop keeps serving.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer func() { _ = conn.Close() }()

	session := NewSession(s.Registry, s.Backend, s.Audit, log.Logger)
	ctx = util.WithLogger(ctx, session.log)
	if err := session.Run(ctx, conn); err != nil {
		log.Error().Err(err).Str("session_id", session.id).Msg("Session terminated")
	}
}

// Shutdown stops accepting, waits for in-flight sessions, removes the socket
// file and shuts down the management endpoint.
func (s *Server) Shutdown(ctx context.Context) []error {
	log.Warn().Msg("Shutting down agent")

	var errs []error

	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.quit)
	}
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	s.wg.Wait()

	if err := os.Remove(s.Config.SocketPath); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}

	if s.Echo != nil {
		log.Debug().Msg("Shutting down management server")

		if err := s.Echo.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	return errs
}
