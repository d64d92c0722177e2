package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// Connection abstracts a websocket connection so tests can substitute a
// fake peer.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	RemoteAddr() string
}

// gorillaConn adapts a gorilla/websocket connection to the Connection
// interface.
type gorillaConn struct {
	conn *websocket.Conn
}

// WrapConn wraps a gorilla connection for use with a Client.
func WrapConn(conn *websocket.Conn) Connection {
	return &gorillaConn{conn: conn}
}

func (c *gorillaConn) WriteMessage(messageType int, data []byte) error {
	return c.conn.WriteMessage(messageType, data)
}

func (c *gorillaConn) ReadMessage() (int, []byte, error) {
	return c.conn.ReadMessage()
}

func (c *gorillaConn) Close() error {
	return c.conn.Close()
}

func (c *gorillaConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *gorillaConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *gorillaConn) SetReadLimit(limit int64) {
	c.conn.SetReadLimit(limit)
}

func (c *gorillaConn) SetPongHandler(h func(string) error) {
	c.conn.SetPongHandler(h)
}

func (c *gorillaConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
