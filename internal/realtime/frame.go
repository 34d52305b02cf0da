// Package realtime serves STOMP 1.2 over websocket: a frame codec, one
// session per connection, a hub of live sessions and the gateway that
// authenticates CONNECT and SEND frames.
package realtime

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Client commands
const (
	CommandConnect     = "CONNECT"
	CommandStomp       = "STOMP"
	CommandSend        = "SEND"
	CommandSubscribe   = "SUBSCRIBE"
	CommandUnsubscribe = "UNSUBSCRIBE"
	CommandDisconnect  = "DISCONNECT"
)

// Server commands
const (
	CommandConnected = "CONNECTED"
	CommandMessage   = "MESSAGE"
	CommandReceipt   = "RECEIPT"
	CommandError     = "ERROR"
)

// Well-known headers
const (
	HeaderAuthorization = "Authorization"
	HeaderDestination   = "destination"
	HeaderID            = "id"
	HeaderSubscription  = "subscription"
	HeaderMessageID     = "message-id"
	HeaderReceipt       = "receipt"
	HeaderReceiptID     = "receipt-id"
	HeaderContentType   = "content-type"
	HeaderContentLength = "content-length"
	HeaderVersion       = "version"
	HeaderHeartBeat     = "heart-beat"
	HeaderUserName      = "user-name"
	HeaderMessage       = "message"
)

// ErrMalformedFrame is returned by Decode for input that is not STOMP
var ErrMalformedFrame = errors.New("malformed stomp frame")

// Frame is one STOMP frame. Header order is kept for encoding; on decode the
// first occurrence of a repeated header wins.
type Frame struct {
	Command string
	Headers []Header
	Body    []byte
}

// Header is one name:value pair
type Header struct {
	Name  string
	Value string
}

// NewFrame builds a frame from alternating name, value pairs
func NewFrame(command string, body []byte, kv ...string) *Frame {
	f := &Frame{Command: command, Body: body}
	for i := 0; i+1 < len(kv); i += 2 {
		f.Headers = append(f.Headers, Header{Name: kv[i], Value: kv[i+1]})
	}
	return f
}

// Header returns the value of the first header called name
func (f *Frame) Header(name string) string {
	v, _ := f.Lookup(name)
	return v
}

// Lookup is Header with a presence flag
func (f *Frame) Lookup(name string) (string, bool) {
	for _, h := range f.Headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

// Set replaces or appends a header
func (f *Frame) Set(name, value string) {
	for i := range f.Headers {
		if f.Headers[i].Name == name {
			f.Headers[i].Value = value
			return
		}
	}
	f.Headers = append(f.Headers, Header{Name: name, Value: value})
}

// escaped reports whether header values are escaped for this command.
// CONNECT and CONNECTED frames are exempt for 1.0 compatibility.
func escaped(command string) bool {
	return command != CommandConnect && command != CommandConnected
}

// Encode serializes f including the trailing NUL. A content-length header is
// added when the frame has a body.
func (f *Frame) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteString(f.Command)
	buf.WriteByte('\n')

	esc := escaped(f.Command)
	hasLength := false
	for _, h := range f.Headers {
		if h.Name == HeaderContentLength {
			hasLength = true
		}
		if esc {
			buf.WriteString(escapeHeader(h.Name))
			buf.WriteByte(':')
			buf.WriteString(escapeHeader(h.Value))
		} else {
			buf.WriteString(h.Name)
			buf.WriteByte(':')
			buf.WriteString(h.Value)
		}
		buf.WriteByte('\n')
	}
	if len(f.Body) > 0 && !hasLength {
		buf.WriteString(HeaderContentLength)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(len(f.Body)))
		buf.WriteByte('\n')
	}

	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0)
	return buf.Bytes()
}

// Decode parses every frame in data. Heart-beat EOLs between frames are
// skipped, so a heart-beat only message yields no frames and no error.
func Decode(data []byte) ([]*Frame, error) {
	var frames []*Frame
	for {
		data = bytes.TrimLeft(data, "\r\n")
		if len(data) == 0 {
			return frames, nil
		}
		f, rest, err := decodeOne(data)
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
		data = rest
	}
}

func decodeOne(data []byte) (*Frame, []byte, error) {
	line, data, ok := cutLine(data)
	if !ok || line == "" {
		return nil, nil, fmt.Errorf("%w: missing command", ErrMalformedFrame)
	}
	f := &Frame{Command: line}
	esc := escaped(f.Command)

	for {
		line, data, ok = cutLine(data)
		if !ok {
			return nil, nil, fmt.Errorf("%w: unterminated headers", ErrMalformedFrame)
		}
		if line == "" {
			break
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			return nil, nil, fmt.Errorf("%w: header %q", ErrMalformedFrame, line)
		}
		if esc {
			var err error
			if name, err = unescapeHeader(name); err != nil {
				return nil, nil, err
			}
			if value, err = unescapeHeader(value); err != nil {
				return nil, nil, err
			}
		}
		if _, dup := f.Lookup(name); !dup {
			f.Headers = append(f.Headers, Header{Name: name, Value: value})
		}
	}

	if raw, ok := f.Lookup(HeaderContentLength); ok {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < 0 {
			return nil, nil, fmt.Errorf("%w: content-length %q", ErrMalformedFrame, raw)
		}
		if n >= len(data) || data[n] != 0 {
			return nil, nil, fmt.Errorf("%w: body shorter than content-length", ErrMalformedFrame)
		}
		f.Body = data[:n]
		return f, data[n+1:], nil
	}

	end := bytes.IndexByte(data, 0)
	if end < 0 {
		return nil, nil, fmt.Errorf("%w: missing NUL terminator", ErrMalformedFrame)
	}
	f.Body = data[:end]
	return f, data[end+1:], nil
}

func cutLine(data []byte) (string, []byte, bool) {
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		return "", data, false
	}
	line := data[:i]
	line = bytes.TrimSuffix(line, []byte{'\r'})
	return string(line), data[i+1:], true
}

var headerEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\r", `\r`,
	"\n", `\n`,
	":", `\c`,
)

func escapeHeader(s string) string {
	return headerEscaper.Replace(s)
}

func unescapeHeader(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		i++
		if i == len(s) {
			return "", fmt.Errorf("%w: dangling escape", ErrMalformedFrame)
		}
		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'c':
			b.WriteByte(':')
		default:
			return "", fmt.Errorf("%w: undefined escape \\%c", ErrMalformedFrame, s[i])
		}
	}
	return b.String(), nil
}
