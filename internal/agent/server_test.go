package agent

import (
	"bufio"
	"bytes"
	"context"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Quaternioneer/trezor-agent/internal/audit"
	"github.com/Quaternioneer/trezor-agent/internal/config"
	"github.com/Quaternioneer/trezor-agent/internal/keyring"
)

func startTestServer(t *testing.T, backend *fakeBackend) (*Server, chan error) {
	t.Helper()

	grip, _ := testKeygrip()
	cfg := config.Server{SocketPath: filepath.Join(t.TempDir(), "agent.sock")}
	srv := newServerWithComponents(
		cfg,
		&fakeRegistry{pub: &keyring.PublicKey{Keygrip: grip}},
		backend,
		audit.NewNopLogger(),
	)

	listenErr := make(chan error, 1)
	go func() { listenErr <- srv.Listen(context.Background()) }()

	// Wait for the socket to come up.
	require.Eventually(t, func() bool {
		conn, err := net.Dial("unix", cfg.SocketPath)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	return srv, listenErr
}

func dialAgent(t *testing.T, srv *Server) (net.Conn, *bufio.Reader) {
	t.Helper()

	conn, err := net.Dial("unix", srv.Config.SocketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn, bufio.NewReader(conn)
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()

	line, err := r.ReadString('\n')
	require.NoError(t, err)
	return line
}

func TestServerRoundTrip(t *testing.T) {
	backend := &fakeBackend{r: big.NewInt(1), s: big.NewInt(2)}
	srv, listenErr := startTestServer(t, backend)
	defer srv.Shutdown(context.Background())

	conn, r := dialAgent(t, srv)

	require.Equal(t, "OK\n", readLine(t, r), "greeting before the first command")

	_, gripHex := testKeygrip()
	_, err := conn.Write([]byte("GETINFO version\n"))
	require.NoError(t, err)
	require.Equal(t, "D 2.1.11\n", readLine(t, r))
	require.Equal(t, "OK\n", readLine(t, r))

	_, err = conn.Write([]byte("SIGKEY " + gripHex + "\nSETHASH 8 " + testDigestHex() + "\nPKSIGN\n"))
	require.NoError(t, err)
	require.Equal(t, "OK\n", readLine(t, r))
	require.Equal(t, "OK\n", readLine(t, r))

	sig, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "D "+sigSexp(1, 2), sig)
	require.Equal(t, "OK\n", readLine(t, r))

	select {
	case err := <-listenErr:
		t.Fatalf("accept loop exited early: %v", err)
	default:
	}
}

func TestServerClosesConnectionOnUnknownCommand(t *testing.T) {
	srv, _ := startTestServer(t, &fakeBackend{})
	defer srv.Shutdown(context.Background())

	conn, r := dialAgent(t, srv)
	require.Equal(t, "OK\n", readLine(t, r))

	_, err := conn.Write([]byte("RESET\nFOO\n"))
	require.NoError(t, err)
	require.Equal(t, "OK\n", readLine(t, r))

	// No reply for FOO: the next read observes the close.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = r.ReadString('\n')
	require.Error(t, err)

	// The accept loop keeps serving after the dropped session.
	conn2, r2 := dialAgent(t, srv)
	require.Equal(t, "OK\n", readLine(t, r2))
	_ = conn2.Close()
}

func TestServerConcurrentConnectionsAreIsolated(t *testing.T) {
	backend := &fakeBackend{r: big.NewInt(7), s: big.NewInt(9)}
	srv, _ := startTestServer(t, backend)
	defer srv.Shutdown(context.Background())

	_, gripHex := testKeygrip()

	var wg sync.WaitGroup
	outputs := make([]string, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			conn, err := net.Dial("unix", srv.Config.SocketPath)
			if err != nil {
				return
			}
			defer func() { _ = conn.Close() }()

			if _, err := conn.Write([]byte("SIGKEY " + gripHex + "\nSETHASH 8 " + testDigestHex() + "\nPKSIGN\nRESET\n")); err != nil {
				return
			}

			var buf bytes.Buffer
			// Greeting + 3 OKs + data line + final OK: read until the
			// last expected OK.
			r := bufio.NewReader(conn)
			for j := 0; j < 6; j++ {
				line, err := r.ReadString('\n')
				if err != nil {
					return
				}
				buf.WriteString(line)
			}
			outputs[i] = buf.String()
		}(i)
	}
	wg.Wait()

	for i, out := range outputs {
		require.NotEmpty(t, out, "connection %d got no replies", i)
		assert.Contains(t, out, "D "+sigSexp(7, 9))
		assert.Equal(t, strings.Count(out, "D ("), 1, "exactly one signature per connection")
	}
	assert.Equal(t, 2, backend.opened)
	assert.Equal(t, 2, backend.released)
}

func TestServerShutdownRemovesSocket(t *testing.T) {
	srv, listenErr := startTestServer(t, &fakeBackend{})

	errs := srv.Shutdown(context.Background())
	require.Empty(t, errs)

	require.NoError(t, <-listenErr, "accept loop ends cleanly on shutdown")

	_, err := os.Stat(srv.Config.SocketPath)
	require.True(t, os.IsNotExist(err), "socket file is removed on shutdown")
}
