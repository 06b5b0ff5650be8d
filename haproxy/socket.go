// Package haproxy talks to the HAProxy stats socket and parses the
// responses of the "show info" and "show stat" commands.
package haproxy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const socketBufferSize = 1024

// Responses HAProxy sends back instead of command output.
var (
	unknownCommandPrefix     = []byte("Unknown command.")
	permissionDeniedResponse = []byte("Permission denied.\n")
	noSuchBackendResponse    = []byte("No such backend.\n")
)

// DialFunc opens a connection to the given network address.
type DialFunc func(network, address string) (net.Conn, error)

// Option configures a Socket.
type Option func(*Socket)

// WithTimeout sets a deadline on every command exchange. Zero, the default,
// waits for HAProxy to close the connection however long that takes.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Socket) {
		s.timeout = timeout
	}
}

// WithDialer replaces the function used to open the UNIX socket.
func WithDialer(dial DialFunc) Option {
	return func(s *Socket) {
		s.dial = dial
	}
}

// Socket sends commands to an HAProxy stats socket. Every command uses its
// own connection.
type Socket struct {
	path    string
	timeout time.Duration
	dial    DialFunc
	logger  log.Logger
}

// NewSocket returns a Socket for the UNIX socket at path.
func NewSocket(path string, logger log.Logger, opts ...Option) *Socket {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	s := &Socket{
		path:   path,
		dial:   net.Dial,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the filesystem path of the socket.
func (s *Socket) Path() string {
	return s.path
}

// SendCommand runs command and returns its output without trailing
// newlines. An empty string with a nil error means there is nothing to
// parse: HAProxy is not listening, or it rejected the command.
func (s *Socket) SendCommand(command string) (string, error) {
	level.Debug(s.logger).Log("msg", "Connecting to socket", "path", s.path)

	conn, err := s.dial("unix", s.path)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			level.Error(s.logger).Log("msg", "Connection refused.  Is HAProxy running?", "path", s.path)
			return "", nil
		}
		return "", fmt.Errorf("error connecting to socket %s: %w", s.path, err)
	}
	defer conn.Close()

	if s.timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
			return "", fmt.Errorf("failed to set deadline: %w", err)
		}
	}

	level.Debug(s.logger).Log("msg", "Running command", "command", command)

	if _, err := conn.Write([]byte(command + "\n")); err != nil {
		return "", fmt.Errorf("error sending command %q: %w", command, err)
	}

	response, err := readResponse(conn)
	if err != nil {
		return "", fmt.Errorf("error reading response to %q: %w", command, err)
	}

	return s.classifyResponse(command, response), nil
}

// readResponse reads until the peer closes the connection.
func readResponse(r io.Reader) ([]byte, error) {
	var (
		buf   bytes.Buffer
		chunk = make([]byte, socketBufferSize)
	)
	for {
		n, err := r.Read(chunk)
		buf.Write(chunk[:n])
		switch {
		case err == nil:
			if n == 0 {
				return buf.Bytes(), nil
			}
		case errors.Is(err, io.EOF):
			return buf.Bytes(), nil
		case errors.Is(err, syscall.EAGAIN), errors.Is(err, syscall.EINTR):
			continue
		default:
			return nil, err
		}
	}
}

func (s *Socket) classifyResponse(command string, response []byte) string {
	switch {
	case bytes.HasPrefix(response, unknownCommandPrefix):
		level.Error(s.logger).Log("msg", fmt.Sprintf("Unknown HAProxy command: %s", command))
		return ""
	case bytes.Equal(response, permissionDeniedResponse):
		level.Error(s.logger).Log("msg", fmt.Sprintf("Permission denied for command: %s", command))
		return ""
	case bytes.Equal(response, noSuchBackendResponse):
		level.Error(s.logger).Log("msg", fmt.Sprintf("No such server: '%s'", command))
		return ""
	}
	return strings.TrimRight(string(response), "\n")
}
