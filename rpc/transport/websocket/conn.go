package websocket

import (
	"io"
	"time"

	"github.com/ValentinKolb/dStream/rpc/common"
	"github.com/ValentinKolb/dStream/rpc/transport"
	"github.com/ValentinKolb/dStream/rpc/transport/base"
	gws "github.com/gorilla/websocket"
	"github.com/lni/dragonboat/v4/logger"
)

// Name is the name of the websocket transport variant
const Name = "websocket"

var Logger = logger.GetLogger(common.LoggerTransport)

// closeGracePeriod bounds the write of the close control message
const closeGracePeriod = time.Second

// messageConn implements transport.IMessageConn for a websocket connection
type messageConn struct {
	conn *gws.Conn
}

// newTransport wraps an established websocket connection into a duplex transport
func newTransport(conn *gws.Conn, config common.TransportConfig) transport.ITransport {
	conn.SetReadLimit(int64(config.FrameLimit()))
	return base.NewTransport(Name, &messageConn{conn: conn}, config)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IMessageConn)
// --------------------------------------------------------------------------

func (c *messageConn) ReadMessage() ([]byte, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, err
		}
		if messageType == gws.BinaryMessage {
			return data, nil
		}
		Logger.Warningf("Ignoring non binary websocket message from %s", c.RemoteAddr())
	}
}

func (c *messageConn) WriteMessage(data []byte) error {
	return c.conn.WriteMessage(gws.BinaryMessage, data)
}

func (c *messageConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *messageConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Close sends a close message (best effort) and closes the underlying connection
func (c *messageConn) Close() error {
	msg := gws.FormatCloseMessage(gws.CloseNormalClosure, "")
	_ = c.conn.WriteControl(gws.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	return c.conn.Close()
}
