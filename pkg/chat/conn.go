package chat

import (
	"bufio"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// Conn abstracts the two client transports: plain TCP with CRLF
// framing and websocket with one line per text frame.
type Conn interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	Close() error
	RemoteAddr() string
}

const writeTimeout = 30 * time.Second

type netConn struct {
	c net.Conn
	r *bufio.Reader
}

// NewNetConn wraps a TCP connection in line framing.
func NewNetConn(c net.Conn) Conn {
	return &netConn{c: c, r: bufio.NewReaderSize(c, 1024)}
}

func (n *netConn) ReadLine() (string, error) {
	line, err := n.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return line, nil
}

func (n *netConn) WriteLine(line string) error {
	_ = n.c.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := n.c.Write([]byte(line + "\r\n"))
	return err
}

func (n *netConn) Close() error { return n.c.Close() }

func (n *netConn) RemoteAddr() string { return n.c.RemoteAddr().String() }

type wsConn struct {
	c *websocket.Conn
}

// NewWSConn wraps a websocket connection; each text frame carries
// exactly one protocol line without CRLF.
func NewWSConn(c *websocket.Conn) Conn {
	return &wsConn{c: c}
}

func (w *wsConn) ReadLine() (string, error) {
	for {
		typ, data, err := w.c.ReadMessage()
		if err != nil {
			return "", err
		}
		if typ != websocket.TextMessage {
			continue
		}
		return string(data), nil
	}
}

func (w *wsConn) WriteLine(line string) error {
	_ = w.c.SetWriteDeadline(time.Now().Add(writeTimeout))
	return w.c.WriteMessage(websocket.TextMessage, []byte(line))
}

func (w *wsConn) Close() error { return w.c.Close() }

func (w *wsConn) RemoteAddr() string { return w.c.RemoteAddr().String() }
