package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/knobgrid/knobgrid-core/internal/infrastructure/config"
	"github.com/knobgrid/knobgrid-core/internal/infrastructure/logging"
	"github.com/knobgrid/knobgrid-core/internal/protocol"
)

// TCP accepts controller connections and gives each one its own protocol
// session. Sessions are independent: one client switching to extended mode
// does not affect another's parser state. The engine serializes command
// dispatch internally, so concurrent clients cannot interleave mutations.
type TCP struct {
	engine *protocol.Engine
	cfg    config.TCPConfig
	logger *logging.Logger
}

// NewTCP creates a TCP transport. Run starts it.
func NewTCP(engine *protocol.Engine, cfg config.TCPConfig, logger *logging.Logger) *TCP {
	return &TCP{
		engine: engine,
		cfg:    cfg,
		logger: logger.With("transport", "tcp"),
	}
}

// Run listens and serves connections until ctx is cancelled.
func (t *TCP) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("tcp listen on %s: %w", addr, err)
	}

	t.logger.Info("tcp transport listening", "addr", addr)

	// Closing the listener unblocks Accept when ctx is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close() //nolint:errcheck // Best effort on teardown
	}()

	var wg sync.WaitGroup
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			t.logger.Warn("accept failed", "error", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			t.serve(ctx, conn)
		}()
	}

	wg.Wait()
	return nil
}

// serve pumps one connection through its own session until the client
// disconnects or ctx is cancelled.
func (t *TCP) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close() //nolint:errcheck // Best effort on teardown

	remote := conn.RemoteAddr().String()
	t.logger.Debug("client connected", "remote", remote)

	// Closing the connection unblocks Read on cancellation.
	stop := context.AfterFunc(ctx, func() {
		conn.Close() //nolint:errcheck // Best effort on teardown
	})
	defer stop()

	session := t.engine.NewSession(conn)
	session.SetSource("tcp:" + remote)

	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			session.Write(buf[:n]) //nolint:errcheck // Session writes never fail
		}
		if err != nil {
			t.logger.Debug("client disconnected", "remote", remote)
			return
		}
	}
}
