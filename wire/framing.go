package wire

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Framer turns a duplex byte stream into discrete JSON message bodies and
// back. Implementations must serialize concurrent writers; reads are owned
// by a single loop.
type Framer interface {
	// ReadMessage returns the next complete message body.
	ReadMessage() ([]byte, error)
	// WriteMessage frames and writes one message body.
	WriteMessage(body []byte) error
	// Close closes the underlying stream. Safe to call more than once.
	Close() error
}

// ContentLengthFramer frames messages as a Content-Length header block
// followed by exactly that many bytes of UTF-8 JSON.
type ContentLengthFramer struct {
	stream  io.ReadWriteCloser
	reader  *bufio.Reader
	writeMu sync.Mutex
}

// NewContentLengthFramer wraps a duplex stream with header-delimited framing.
func NewContentLengthFramer(stream io.ReadWriteCloser) *ContentLengthFramer {
	return &ContentLengthFramer{
		stream: stream,
		reader: bufio.NewReader(stream),
	}
}

// ReadMessage accumulates header lines until a blank line, parses
// Content-Length, then reads exactly that many bytes as the body.
func (f *ContentLengthFramer) ReadMessage() ([]byte, error) {
	length := -1
	for {
		line, err := f.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, &FrameError{Message: fmt.Sprintf("malformed header line %q", line)}
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 0 {
				return nil, &FrameError{Message: fmt.Sprintf("invalid Content-Length %q", strings.TrimSpace(value)), Cause: err}
			}
			length = n
		}
		// Other headers are tolerated and skipped.
	}

	if length < 0 {
		return nil, &FrameError{Message: "header block missing Content-Length"}
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(f.reader, body); err != nil {
		return nil, &FrameError{Message: "truncated message body", Cause: err}
	}
	return body, nil
}

// WriteMessage writes the header block and body as one frame.
func (f *ContentLengthFramer) WriteMessage(body []byte) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if _, err := fmt.Fprintf(f.stream, "Content-Length: %d\r\n\r\n", len(body)); err != nil {
		return err
	}
	_, err := f.stream.Write(body)
	return err
}

// Close closes the underlying stream.
func (f *ContentLengthFramer) Close() error {
	return f.stream.Close()
}

// LineFramer frames messages as one JSON object per newline-terminated
// line. Blank lines are discarded on read.
type LineFramer struct {
	stream  io.ReadWriteCloser
	reader  *bufio.Reader
	writeMu sync.Mutex
}

// NewLineFramer wraps a duplex stream with newline-delimited framing.
func NewLineFramer(stream io.ReadWriteCloser) *LineFramer {
	return &LineFramer{
		stream: stream,
		reader: bufio.NewReader(stream),
	}
}

// ReadMessage returns the next non-blank line without its trailing newline.
func (f *LineFramer) ReadMessage() ([]byte, error) {
	for {
		line, err := f.reader.ReadBytes('\n')
		if err != nil {
			return nil, err
		}
		line = trimLineEnding(line)
		if len(line) == 0 {
			continue
		}
		return line, nil
	}
}

// WriteMessage writes the body followed by a newline.
func (f *LineFramer) WriteMessage(body []byte) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if _, err := f.stream.Write(body); err != nil {
		return err
	}
	_, err := f.stream.Write([]byte{'\n'})
	return err
}

// Close closes the underlying stream.
func (f *LineFramer) Close() error {
	return f.stream.Close()
}

func trimLineEnding(line []byte) []byte {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}
