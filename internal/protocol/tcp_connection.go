// internal/protocol/tcp_connection.go
package protocol

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"serial-terminal/internal/model"
	"serial-terminal/internal/terminal"
)

// TCPConnection is a serial line reached through a network serial bridge.
// Bytes pass through unchanged; line settings are the bridge's business.
type TCPConnection struct {
	conn         net.Conn
	address      string
	readTimeout  time.Duration
	writeTimeout time.Duration
	logger       *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

func dialTCP(ctx context.Context, ep Endpoint, cfg model.ConnectionConfig, tcpCfg TCPConfig, logger *zap.Logger) (*TCPConnection, error) {
	logger = logger.With(
		zap.String("protocol", string(ep.Type)),
		zap.String("address", ep.Address),
	)

	dialer := &net.Dialer{
		Timeout:   tcpCfg.DialTimeout,
		KeepAlive: tcpCfg.KeepAlive,
	}

	var (
		conn net.Conn
		err  error
	)
	if ep.Type == ConnectionTypeTLS {
		host, _, _ := net.SplitHostPort(ep.Address)
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config: &tls.Config{
				ServerName:         host,
				InsecureSkipVerify: tcpCfg.InsecureSkipVerify,
			},
		}
		conn, err = tlsDialer.DialContext(ctx, "tcp", ep.Address)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", ep.Address)
	}
	if err != nil {
		return nil, &terminal.OpenError{Port: cfg.Port, Reason: classifyDial(err), Err: err}
	}

	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = model.DefaultReadTimeout
	}

	logger.Debug("Network serial bridge connected", zap.String("remote", conn.RemoteAddr().String()))

	return &TCPConnection{
		conn:         conn,
		address:      ep.Address,
		readTimeout:  readTimeout,
		writeTimeout: tcpCfg.WriteTimeout,
		logger:       logger,
	}, nil
}

// Read returns (0, nil) when the read timeout expires with no data
func (tc *TCPConnection) Read(p []byte) (int, error) {
	if err := tc.conn.SetReadDeadline(time.Now().Add(tc.readTimeout)); err != nil {
		return 0, fmt.Errorf("failed to set read deadline: %w", err)
	}

	n, err := tc.conn.Read(p)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return n, nil
		}
		return n, fmt.Errorf("failed to read from %s: %w", tc.address, err)
	}
	return n, nil
}

// Write writes p, failing if the bridge does not accept it within the write
// timeout
func (tc *TCPConnection) Write(p []byte) (int, error) {
	if tc.writeTimeout > 0 {
		if err := tc.conn.SetWriteDeadline(time.Now().Add(tc.writeTimeout)); err != nil {
			return 0, fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	n, err := tc.conn.Write(p)
	if err != nil {
		return n, fmt.Errorf("failed to write to %s: %w", tc.address, err)
	}

	tc.logger.Debug("TCP write completed", zap.Int("bytes", n))
	return n, nil
}

// Close closes the connection. A blocked Read returns with an error.
func (tc *TCPConnection) Close() error {
	tc.closeOnce.Do(func() {
		if err := tc.conn.Close(); err != nil {
			tc.closeErr = fmt.Errorf("failed to close TCP connection: %w", err)
		}
	})
	return tc.closeErr
}

func classifyDial(err error) terminal.OpenFailure {
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr) && dnsErr.IsNotFound:
		return terminal.OpenNotFound
	case errors.Is(err, syscall.ECONNREFUSED):
		return terminal.OpenNotFound
	case errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		return terminal.OpenPermissionDenied
	case errors.Is(err, syscall.EADDRINUSE):
		return terminal.OpenBusy
	}
	return terminal.OpenUnknown
}
