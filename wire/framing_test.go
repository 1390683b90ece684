package wire

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bufferStream adapts a bytes.Buffer into a ReadWriteCloser for framing
// tests. Reads consume what writes produced.
type bufferStream struct {
	buf bytes.Buffer
}

func (s *bufferStream) Read(p []byte) (int, error)  { return s.buf.Read(p) }
func (s *bufferStream) Write(p []byte) (int, error) { return s.buf.Write(p) }
func (s *bufferStream) Close() error                { return nil }

// readerStream wraps a fixed input for read-only tests.
type readerStream struct {
	io.Reader
}

func (s *readerStream) Write(p []byte) (int, error) { return len(p), nil }
func (s *readerStream) Close() error                { return nil }

func TestContentLengthFramer_RoundTrip(t *testing.T) {
	t.Parallel()

	stream := &bufferStream{}
	framer := NewContentLengthFramer(stream)

	bodies := [][]byte{
		[]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`),
		[]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`),
		[]byte(`{"unicode":"héllo ✓"}`),
	}
	for _, body := range bodies {
		require.NoError(t, framer.WriteMessage(body))
	}
	for _, want := range bodies {
		got, err := framer.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestContentLengthFramer_WriteFormat(t *testing.T) {
	t.Parallel()

	stream := &bufferStream{}
	framer := NewContentLengthFramer(stream)

	body := []byte(`{"a":1}`)
	require.NoError(t, framer.WriteMessage(body))

	want := fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
	assert.Equal(t, want, stream.buf.String())
}

func TestContentLengthFramer_ExtraHeadersTolerated(t *testing.T) {
	t.Parallel()

	raw := "Content-Type: application/json\r\nContent-Length: 7\r\nX-Custom: yes\r\n\r\n{\"a\":1}"
	framer := NewContentLengthFramer(&readerStream{strings.NewReader(raw)})

	got, err := framer.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), got)
}

func TestContentLengthFramer_ReadErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{name: "missing content-length", raw: "Content-Type: application/json\r\n\r\n{}"},
		{name: "invalid content-length", raw: "Content-Length: banana\r\n\r\n{}"},
		{name: "negative content-length", raw: "Content-Length: -5\r\n\r\n{}"},
		{name: "malformed header line", raw: "NoColonHere\r\n\r\n{}"},
		{name: "truncated body", raw: "Content-Length: 100\r\n\r\n{}"},
	}
	for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			framer := NewContentLengthFramer(&readerStream{strings.NewReader(tt.raw)})
			_, err := framer.ReadMessage()
			require.Error(t, err)

			var fe *FrameError
			assert.ErrorAs(t, err, &fe)
		})
	}
}

func TestLineFramer_RoundTrip(t *testing.T) {
	t.Parallel()

	stream := &bufferStream{}
	framer := NewLineFramer(stream)

	bodies := [][]byte{
		[]byte(`{"jsonrpc":"2.0","method":"session/update"}`),
		[]byte(`{"jsonrpc":"2.0","id":2,"result":{"ok":true}}`),
	}
	for _, body := range bodies {
		require.NoError(t, framer.WriteMessage(body))
	}
	for _, want := range bodies {
		got, err := framer.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestLineFramer_SkipsBlankLines(t *testing.T) {
	t.Parallel()

	raw := "\n\r\n{\"a\":1}\n\n{\"b\":2}\n"
	framer := NewLineFramer(&readerStream{strings.NewReader(raw)})

	got, err := framer.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), got)

	got, err = framer.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"b":2}`), got)
}

func TestLineFramer_TrimsCarriageReturn(t *testing.T) {
	t.Parallel()

	framer := NewLineFramer(&readerStream{strings.NewReader("{\"a\":1}\r\n")})
	got, err := framer.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), got)
}

func TestLineFramer_EOF(t *testing.T) {
	t.Parallel()

	framer := NewLineFramer(&readerStream{strings.NewReader("")})
	_, err := framer.ReadMessage()
	assert.ErrorIs(t, err, io.EOF)
}
