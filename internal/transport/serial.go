package transport

import (
	"context"
	"errors"
	"io"
	"time"

	"go.bug.st/serial"

	"github.com/knobgrid/knobgrid-core/internal/infrastructure/config"
	"github.com/knobgrid/knobgrid-core/internal/infrastructure/logging"
	"github.com/knobgrid/knobgrid-core/internal/protocol"
)

// serialReadTimeout bounds a single blocking read so the pump loop can
// notice context cancellation even on a silent line.
const serialReadTimeout = 500 * time.Millisecond

// Serial pumps bytes between a physical serial port and the protocol
// engine. The port is reopened automatically after errors, so unplugging
// the cable mid-session degrades to a pause instead of a crash.
type Serial struct {
	engine *protocol.Engine
	cfg    config.SerialConfig
	logger *logging.Logger
}

// NewSerial creates a serial transport. Run starts it.
func NewSerial(engine *protocol.Engine, cfg config.SerialConfig, logger *logging.Logger) *Serial {
	return &Serial{
		engine: engine,
		cfg:    cfg,
		logger: logger.With("transport", "serial"),
	}
}

// Run opens the port and pumps bytes until ctx is cancelled. Open and read
// failures are logged and retried after the configured reconnect delay.
func (s *Serial) Run(ctx context.Context) error {
	for {
		port, err := s.open()
		if err != nil {
			s.logger.Error("failed to open serial port",
				"port", s.cfg.Port,
				"error", err,
			)
		} else {
			s.logger.Info("serial port open",
				"port", s.cfg.Port,
				"baud", s.cfg.BaudRate,
			)
			err = s.pump(ctx, port)
			port.Close() //nolint:errcheck // Best effort on teardown
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("serial port lost, reopening",
				"port", s.cfg.Port,
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.cfg.GetReconnectDelay()):
		}
	}
}

// open opens and configures the serial port.
func (s *Serial) open() (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: s.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(s.cfg.Port, mode)
	if err != nil {
		return nil, err
	}

	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		port.Close() //nolint:errcheck // Best effort on error path
		return nil, err
	}

	return port, nil
}

// pump feeds port bytes into a fresh session until ctx is cancelled or the
// port fails. A read timeout yields zero bytes and loops; that is how
// cancellation is observed on an idle line.
func (s *Serial) pump(ctx context.Context, port io.ReadWriter) error {
	session := s.engine.NewSession(port)
	session.SetSource("serial")

	buf := make([]byte, 256)
	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := port.Read(buf)
		if n > 0 {
			session.Write(buf[:n]) //nolint:errcheck // Session writes never fail
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				continue // Read timeout on some platforms
			}
			return err
		}
	}
}
