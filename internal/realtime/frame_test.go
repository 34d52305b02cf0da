package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_RoundTrip(t *testing.T) {
	in := NewFrame(CommandSend, []byte(`{"message":"hi"}`),
		HeaderDestination, "/app/chat.sendMessage",
		"x-note", "a:b\nc\\d",
	)

	frames, err := Decode(in.Encode())
	require.NoError(t, err)
	require.Len(t, frames, 1)

	out := frames[0]
	assert.Equal(t, CommandSend, out.Command)
	assert.Equal(t, "/app/chat.sendMessage", out.Header(HeaderDestination))
	assert.Equal(t, "a:b\nc\\d", out.Header("x-note"))
	assert.Equal(t, "16", out.Header(HeaderContentLength))
	assert.Equal(t, `{"message":"hi"}`, string(out.Body))
}

func TestFrame_EscapesHeaders(t *testing.T) {
	raw := NewFrame(CommandMessage, nil, "k", "a:b").Encode()
	assert.Contains(t, string(raw), `k:a\cb`)

	// CONNECT and CONNECTED carry values verbatim
	raw = NewFrame(CommandConnect, nil, HeaderAuthorization, "Bearer a:b").Encode()
	assert.Contains(t, string(raw), "Authorization:Bearer a:b\n")

	frames, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "Bearer a:b", frames[0].Header(HeaderAuthorization))
}

func TestDecode(t *testing.T) {
	t.Run("heart-beat only", func(t *testing.T) {
		frames, err := Decode([]byte("\n\r\n"))
		assert.NoError(t, err)
		assert.Empty(t, frames)
	})

	t.Run("several frames with heart-beats between", func(t *testing.T) {
		data := "\nCONNECT\naccept-version:1.2\n\n\x00\nSUBSCRIBE\nid:sub-0\ndestination:/user/queue/messages\n\n\x00\n"
		frames, err := Decode([]byte(data))
		require.NoError(t, err)
		require.Len(t, frames, 2)
		assert.Equal(t, CommandConnect, frames[0].Command)
		assert.Equal(t, "sub-0", frames[1].Header(HeaderID))
	})

	t.Run("content-length allows NUL in body", func(t *testing.T) {
		frames, err := Decode([]byte("SEND\ndestination:/topic/a\ncontent-length:3\n\na\x00b\x00"))
		require.NoError(t, err)
		assert.Equal(t, []byte("a\x00b"), frames[0].Body)
	})

	t.Run("CRLF line endings", func(t *testing.T) {
		frames, err := Decode([]byte("SEND\r\ndestination:/topic/a\r\n\r\nhello\x00"))
		require.NoError(t, err)
		assert.Equal(t, "/topic/a", frames[0].Header(HeaderDestination))
		assert.Equal(t, "hello", string(frames[0].Body))
	})

	t.Run("first repeated header wins", func(t *testing.T) {
		frames, err := Decode([]byte("SEND\nfoo:1\nfoo:2\n\n\x00"))
		require.NoError(t, err)
		assert.Equal(t, "1", frames[0].Header("foo"))
		assert.Len(t, frames[0].Headers, 1)
	})

	malformed := map[string]string{
		"missing NUL":            "SEND\ndestination:/a\n\nbody",
		"unterminated headers":   "SEND\ndestination:/a",
		"header without colon":   "SEND\nbogus\n\n\x00",
		"bad escape":             "SEND\nk:\\t\n\n\x00",
		"short body":             "SEND\ncontent-length:10\n\nabc\x00",
		"bad content-length":     "SEND\ncontent-length:x\n\n\x00",
		"max int content-length": "SEND\ndestination:/app/x\ncontent-length:9223372036854775807\n\nabc\x00",
		"body fills frame":       "SEND\ncontent-length:3\n\nabc",
	}
	for name, data := range malformed {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(data))
			assert.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}

func TestFrame_Set(t *testing.T) {
	f := NewFrame(CommandConnected, nil, HeaderVersion, "1.2")
	f.Set(HeaderVersion, "1.1")
	f.Set(HeaderUserName, "alice")
	assert.Equal(t, "1.1", f.Header(HeaderVersion))
	assert.Equal(t, "alice", f.Header(HeaderUserName))
	_, ok := f.Lookup("missing")
	assert.False(t, ok)
}
