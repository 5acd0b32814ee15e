package protocol

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/clock"
)

var (
	// ErrTimeout is returned when the read budget runs out.
	ErrTimeout = errors.New("read timed out")
	// ErrDisconnected is returned when the peer closes the stream mid-read.
	ErrDisconnected = errors.New("peer disconnected")
	// ErrMalformedFrame is returned when the length prefix cannot be parsed.
	ErrMalformedFrame = errors.New("malformed frame")
)

const (
	// Delimiter separates the decimal length prefix from the payload.
	Delimiter = '_'

	maxLengthDigits = 9
	// MaxFrameSize bounds the payload a peer may announce.
	MaxFrameSize = 1 << 20
)

// DeadlineReader is the read half of a connection with deadline support.
// net.Conn satisfies it.
type DeadlineReader interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

// ReadFrame reads one `<length>_<payload>` frame. The delimiter scan and the
// payload read share a single deadline; every partial read is bounded by the
// budget left when it starts, and no read is attempted once it is spent.
func ReadFrame(r DeadlineReader, deadline clock.Deadline) ([]byte, error) {
	header := make([]byte, 0, maxLengthDigits)
	one := make([]byte, 1)
	for {
		if _, err := readSome(r, deadline, one); err != nil {
			return nil, err
		}
		if one[0] == Delimiter {
			break
		}
		if one[0] < '0' || one[0] > '9' || len(header) == maxLengthDigits {
			return nil, fmt.Errorf("%w: unexpected byte %q in length prefix", ErrMalformedFrame, one[0])
		}
		header = append(header, one[0])
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: empty length prefix", ErrMalformedFrame)
	}
	length, err := strconv.Atoi(string(header))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: frame of %d bytes exceeds %d", ErrMalformedFrame, length, MaxFrameSize)
	}

	payload := make([]byte, length)
	for got := 0; got < length; {
		n, err := readSome(r, deadline, payload[got:])
		if err != nil {
			return nil, err
		}
		got += n
	}
	return payload, nil
}

// readSome performs one underlying read within the remaining budget. It
// returns at least one byte or an error; a zero-length read means the peer
// closed the stream.
func readSome(r DeadlineReader, deadline clock.Deadline, buf []byte) (int, error) {
	remaining := deadline.Remaining()
	if remaining <= 0 {
		return 0, ErrTimeout
	}
	if err := r.SetReadDeadline(time.Now().Add(remaining)); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	n, err := r.Read(buf)
	if n > 0 {
		return n, nil
	}
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return 0, ErrDisconnected
	case isTimeout(err):
		return 0, ErrTimeout
	default:
		return 0, fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// EncodeFrame prefixes payload with its decimal length and the delimiter.
func EncodeFrame(payload []byte) []byte {
	prefix := strconv.Itoa(len(payload))
	out := make([]byte, 0, len(prefix)+1+len(payload))
	out = append(out, prefix...)
	out = append(out, Delimiter)
	return append(out, payload...)
}

// WriteFrame writes payload as a single frame.
func WriteFrame(w io.Writer, payload []byte) error {
	_, err := w.Write(EncodeFrame(payload))
	return err
}
