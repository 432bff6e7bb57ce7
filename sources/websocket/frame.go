package websocket

import (
	"time"

	xws "golang.org/x/net/websocket"
)

// FrameType is the websocket opcode of a data frame.
type FrameType byte

const (
	TextFrame   FrameType = xws.TextFrame
	BinaryFrame FrameType = xws.BinaryFrame
)

func (t FrameType) String() string {
	switch t {
	case TextFrame:
		return "text"
	case BinaryFrame:
		return "binary"
	default:
		return "unknown"
	}
}

// Frame is one received data frame.
type Frame struct {
	Type     FrameType
	Data     []byte
	Received time.Time
}

// Text returns the payload as a string.
func (f Frame) Text() string { return string(f.Data) }

// frameCodec receives a whole message together with its opcode, which
// websocket.Message hides.
var frameCodec = xws.Codec{
	Marshal: func(v any) ([]byte, byte, error) {
		f := v.(Frame)
		return f.Data, byte(f.Type), nil
	},
	Unmarshal: func(data []byte, payloadType byte, v any) error {
		f := v.(*Frame)
		f.Type = FrameType(payloadType)
		f.Data = data
		f.Received = time.Now()
		return nil
	},
}

// Send writes f to ws with its own opcode. Servers in tests use it.
func Send(ws *xws.Conn, f Frame) error { return frameCodec.Send(ws, f) }
