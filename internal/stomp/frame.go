package stomp

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Command is a STOMP frame command.
type Command string

const (
	CmdConnect     Command = "CONNECT"
	CmdStomp       Command = "STOMP"
	CmdConnected   Command = "CONNECTED"
	CmdSend        Command = "SEND"
	CmdSubscribe   Command = "SUBSCRIBE"
	CmdUnsubscribe Command = "UNSUBSCRIBE"
	CmdDisconnect  Command = "DISCONNECT"
	CmdMessage     Command = "MESSAGE"
	CmdReceipt     Command = "RECEIPT"
	CmdError       Command = "ERROR"
)

// Well-known header names.
const (
	HdrAcceptVersion = "accept-version"
	HdrHost          = "host"
	HdrHeartBeat     = "heart-beat"
	HdrVersion       = "version"
	HdrDestination   = "destination"
	HdrID            = "id"
	HdrAck           = "ack"
	HdrSubscription  = "subscription"
	HdrMessageID     = "message-id"
	HdrReceipt       = "receipt"
	HdrReceiptID     = "receipt-id"
	HdrContentType   = "content-type"
	HdrContentLength = "content-length"
	HdrMessage       = "message"
)

// Errors
var (
	ErrMalformedFrame = errors.New("malformed stomp frame")
	ErrEmptyCommand   = errors.New("empty stomp command")
)

// Frame is a single STOMP frame. When a header repeats on the wire only the
// first value is kept.
type Frame struct {
	Command Command
	Header  map[string]string
	Body    []byte
}

// NewFrame creates a frame with the given header key/value pairs.
func NewFrame(cmd Command, kv ...string) Frame {
	f := Frame{Command: cmd, Header: make(map[string]string, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		f.Header[kv[i]] = kv[i+1]
	}
	return f
}

// Get returns a header value or "".
func (f Frame) Get(key string) string {
	return f.Header[key]
}

// rawHeaders reports whether header escaping is disabled for cmd.
func rawHeaders(cmd Command) bool {
	return cmd == CmdConnect || cmd == CmdConnected || cmd == CmdStomp
}

// Marshal encodes f. Headers are written in sorted order so output is
// deterministic. A content-length header is added when the frame has a body.
func Marshal(f Frame) []byte {
	var buf bytes.Buffer
	buf.WriteString(string(f.Command))
	buf.WriteByte('\n')

	keys := make([]string, 0, len(f.Header)+1)
	for k := range f.Header {
		if k == HdrContentLength {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	raw := rawHeaders(f.Command)
	for _, k := range keys {
		v := f.Header[k]
		if !raw {
			k, v = escape(k), escape(v)
		}
		buf.WriteString(k)
		buf.WriteByte(':')
		buf.WriteString(v)
		buf.WriteByte('\n')
	}
	if len(f.Body) > 0 {
		buf.WriteString(HdrContentLength)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(len(f.Body)))
		buf.WriteByte('\n')
	}

	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0)
	return buf.Bytes()
}

// IsHeartbeat reports whether a WebSocket message is a STOMP heart-beat.
func IsHeartbeat(data []byte) bool {
	for _, b := range data {
		if b != '\n' && b != '\r' {
			return false
		}
	}
	return true
}

// Parse decodes every frame contained in a WebSocket message. Leading
// end-of-lines between frames are heart-beats and are skipped.
func Parse(data []byte) ([]Frame, error) {
	var frames []Frame
	pos := 0

	for {
		for pos < len(data) && (data[pos] == '\n' || data[pos] == '\r') {
			pos++
		}
		if pos >= len(data) {
			return frames, nil
		}

		f, n, err := parseOne(data[pos:])
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
		pos += n
	}
}

// parseOne decodes one frame from the front of data and returns how many
// bytes it consumed.
func parseOne(data []byte) (Frame, int, error) {
	pos := 0

	line, n, ok := readLine(data[pos:])
	if !ok {
		return Frame{}, 0, fmt.Errorf("%w: missing command terminator", ErrMalformedFrame)
	}
	pos += n
	if line == "" {
		return Frame{}, 0, ErrEmptyCommand
	}

	f := Frame{Command: Command(line), Header: make(map[string]string)}
	raw := rawHeaders(f.Command)

	for {
		line, n, ok = readLine(data[pos:])
		if !ok {
			return Frame{}, 0, fmt.Errorf("%w: unterminated headers", ErrMalformedFrame)
		}
		pos += n
		if line == "" {
			break
		}

		k, v, found := strings.Cut(line, ":")
		if !found {
			return Frame{}, 0, fmt.Errorf("%w: header %q has no colon", ErrMalformedFrame, line)
		}
		if !raw {
			k, v = unescape(k), unescape(v)
		}
		if _, exists := f.Header[k]; !exists {
			f.Header[k] = v
		}
	}

	if cl, ok := f.Header[HdrContentLength]; ok {
		size, err := strconv.Atoi(cl)
		if err != nil || size < 0 {
			return Frame{}, 0, fmt.Errorf("%w: bad content-length %q", ErrMalformedFrame, cl)
		}
		if pos+size >= len(data) || data[pos+size] != 0 {
			return Frame{}, 0, fmt.Errorf("%w: body shorter than content-length", ErrMalformedFrame)
		}
		f.Body = append([]byte(nil), data[pos:pos+size]...)
		return f, pos + size + 1, nil
	}

	end := bytes.IndexByte(data[pos:], 0)
	if end < 0 {
		return Frame{}, 0, fmt.Errorf("%w: missing NUL terminator", ErrMalformedFrame)
	}
	if end > 0 {
		f.Body = append([]byte(nil), data[pos:pos+end]...)
	}
	return f, pos + end + 1, nil
}

// readLine returns the next line without its EOL (LF or CRLF).
func readLine(data []byte) (string, int, bool) {
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		return "", 0, false
	}
	line := data[:i]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return string(line), i + 1, true
}

var (
	escaper   = strings.NewReplacer("\\", "\\\\", "\r", "\\r", "\n", "\\n", ":", "\\c")
	unescaper = strings.NewReplacer("\\\\", "\\", "\\r", "\r", "\\n", "\n", "\\c", ":")
)

func escape(s string) string   { return escaper.Replace(s) }
func unescape(s string) string { return unescaper.Replace(s) }

// FormatHeartBeat renders the heart-beat header value "cx,cy" in milliseconds.
func FormatHeartBeat(outgoing, incoming time.Duration) string {
	return fmt.Sprintf("%d,%d", outgoing.Milliseconds(), incoming.Milliseconds())
}

// ParseHeartBeat parses a heart-beat header value. An empty value means no heart-beats.
func ParseHeartBeat(v string) (outgoing, incoming time.Duration, err error) {
	if v == "" {
		return 0, 0, nil
	}
	a, b, ok := strings.Cut(v, ",")
	if !ok {
		return 0, 0, fmt.Errorf("%w: heart-beat %q", ErrMalformedFrame, v)
	}
	x, err := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
	if err != nil || x < 0 {
		return 0, 0, fmt.Errorf("%w: heart-beat %q", ErrMalformedFrame, v)
	}
	y, err := strconv.ParseInt(strings.TrimSpace(b), 10, 64)
	if err != nil || y < 0 {
		return 0, 0, fmt.Errorf("%w: heart-beat %q", ErrMalformedFrame, v)
	}
	return time.Duration(x) * time.Millisecond, time.Duration(y) * time.Millisecond, nil
}

// NegotiateHeartBeat returns how often the client must send heart-beats and
// how often it should expect them, per the STOMP 1.2 rules. Zero disables.
func NegotiateHeartBeat(clientOut, clientIn, serverOut, serverIn time.Duration) (send, expect time.Duration) {
	if clientOut > 0 && serverIn > 0 {
		send = max(clientOut, serverIn)
	}
	if clientIn > 0 && serverOut > 0 {
		expect = max(clientIn, serverOut)
	}
	return send, expect
}
