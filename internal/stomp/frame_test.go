package stomp

import (
	"errors"
	"testing"
	"time"
)

func TestMarshal_Send(t *testing.T) {
	f := NewFrame(CmdSend, HdrDestination, "/app/chat/1/sendMessage", HdrContentType, "application/json")
	f.Body = []byte(`{"content":"hi"}`)

	got := string(Marshal(f))
	want := "SEND\ncontent-type:application/json\ndestination:/app/chat/1/sendMessage\ncontent-length:16\n\n{\"content\":\"hi\"}\x00"
	if got != want {
		t.Errorf("Marshal() = %q, want %q", got, want)
	}
}

func TestMarshal_ConnectHeadersNotEscaped(t *testing.T) {
	f := NewFrame(CmdConnect, HdrHost, "localhost:8080")
	got := string(Marshal(f))
	want := "CONNECT\nhost:localhost:8080\n\n\x00"
	if got != want {
		t.Errorf("Marshal() = %q, want %q", got, want)
	}
}

func TestMarshal_EscapesHeaders(t *testing.T) {
	f := NewFrame(CmdSubscribe, HdrDestination, "a:b\nc")
	got := string(Marshal(f))
	want := "SUBSCRIBE\ndestination:a\\cb\\nc\n\n\x00"
	if got != want {
		t.Errorf("Marshal() = %q, want %q", got, want)
	}
}

func TestParse_Message(t *testing.T) {
	data := []byte("MESSAGE\ndestination:/topic/chat/1/public\nsubscription:sub-1\nmessage-id:7\n\n{\"content\":\"hello\"}\x00")

	frames, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}

	f := frames[0]
	if f.Command != CmdMessage {
		t.Errorf("Command = %s, want MESSAGE", f.Command)
	}
	if f.Get(HdrSubscription) != "sub-1" {
		t.Errorf("subscription = %q, want sub-1", f.Get(HdrSubscription))
	}
	if string(f.Body) != `{"content":"hello"}` {
		t.Errorf("Body = %q", f.Body)
	}
}

func TestParse_ContentLengthAllowsNUL(t *testing.T) {
	data := []byte("MESSAGE\ncontent-length:3\n\na\x00b\x00")

	frames, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if string(frames[0].Body) != "a\x00b" {
		t.Errorf("Body = %q, want %q", frames[0].Body, "a\x00b")
	}
}

func TestParse_MultipleFramesAndHeartbeats(t *testing.T) {
	data := []byte("\n\r\nRECEIPT\nreceipt-id:r1\n\n\x00\nERROR\nmessage:boom\n\nbad\x00\n")

	frames, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].Get(HdrReceiptID) != "r1" {
		t.Errorf("receipt-id = %q, want r1", frames[0].Get(HdrReceiptID))
	}
	if frames[1].Command != CmdError || string(frames[1].Body) != "bad" {
		t.Errorf("second frame = %+v", frames[1])
	}
}

func TestParse_FirstRepeatedHeaderWins(t *testing.T) {
	frames, err := Parse([]byte("MESSAGE\nfoo:1\nfoo:2\n\n\x00"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := frames[0].Get("foo"); got != "1" {
		t.Errorf("foo = %q, want 1", got)
	}
}

func TestParse_Unescape(t *testing.T) {
	frames, err := Parse([]byte("MESSAGE\ndestination:a\\cb\\\\c\n\n\x00"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := frames[0].Get(HdrDestination); got != `a:b\c` {
		t.Errorf("destination = %q, want %q", got, `a:b\c`)
	}
}

func TestParse_RoundTripCRLF(t *testing.T) {
	frames, err := Parse([]byte("CONNECTED\r\nversion:1.2\r\nheart-beat:0,0\r\n\r\n\x00"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if frames[0].Command != CmdConnected || frames[0].Get(HdrVersion) != "1.2" {
		t.Errorf("frame = %+v", frames[0])
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no command terminator", "MESSAGE"},
		{"unterminated headers", "MESSAGE\nfoo:bar\n"},
		{"header without colon", "MESSAGE\nfoobar\n\n\x00"},
		{"missing NUL", "MESSAGE\n\nbody"},
		{"short body", "MESSAGE\ncontent-length:10\n\nabc\x00"},
		{"bad content-length", "MESSAGE\ncontent-length:x\n\n\x00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("Parse() error = %v, want ErrMalformedFrame", err)
			}
		})
	}
}

func TestIsHeartbeat(t *testing.T) {
	if !IsHeartbeat([]byte("\n")) {
		t.Error("LF should be a heart-beat")
	}
	if !IsHeartbeat([]byte("\r\n")) {
		t.Error("CRLF should be a heart-beat")
	}
	if IsHeartbeat([]byte("MESSAGE\n")) {
		t.Error("frame should not be a heart-beat")
	}
}

func TestHeartBeatNegotiation(t *testing.T) {
	out, in, err := ParseHeartBeat("10000,20000")
	if err != nil {
		t.Fatalf("ParseHeartBeat failed: %v", err)
	}
	if out != 10*time.Second || in != 20*time.Second {
		t.Errorf("ParseHeartBeat = %v,%v, want 10s,20s", out, in)
	}

	if got := FormatHeartBeat(20*time.Second, 20*time.Second); got != "20000,20000" {
		t.Errorf("FormatHeartBeat = %q", got)
	}

	send, expect := NegotiateHeartBeat(20*time.Second, 20*time.Second, out, in)
	if send != 20*time.Second {
		t.Errorf("send = %v, want 20s", send)
	}
	if expect != 20*time.Second {
		t.Errorf("expect = %v, want 20s", expect)
	}

	send, expect = NegotiateHeartBeat(20*time.Second, 0, 0, 0)
	if send != 0 || expect != 0 {
		t.Errorf("disabled negotiation = %v,%v, want 0,0", send, expect)
	}

	if _, _, err := ParseHeartBeat("abc"); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("ParseHeartBeat(abc) error = %v", err)
	}
}
