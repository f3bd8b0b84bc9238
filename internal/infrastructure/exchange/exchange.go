package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pricealert/internal/application/port"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 25 * time.Second
	writeTimeout = 5 * time.Second
)

var ErrStreamClosed = errors.New("stream closed")

// WSStream adapts a websocket connection to port.FeedStream. Messages are
// forwarded in arrival order; the channel closes when the socket ends.
type WSStream struct {
	conn *websocket.Conn
	msgs chan []byte

	mu  sync.Mutex
	err error

	closeOnce sync.Once
	done      chan struct{}
}

// DialStream dials url within ctx. onOpen runs before reading starts, e.g. to
// send a subscribe request.
func DialStream(ctx context.Context, url string, onOpen func(conn *websocket.Conn) error) (*WSStream, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		return nil, err
	}
	if onOpen != nil {
		if dl, ok := ctx.Deadline(); ok {
			_ = conn.SetWriteDeadline(dl)
		}
		if err := onOpen(conn); err != nil {
			_ = conn.Close()
			return nil, err
		}
		_ = conn.SetWriteDeadline(time.Time{})
	}

	s := &WSStream{
		conn: conn,
		msgs: make(chan []byte, 256),
		done: make(chan struct{}),
	}
	go s.readLoop()
	go s.pingLoop()
	return s, nil
}

func (s *WSStream) Messages() <-chan []byte { return s.msgs }

func (s *WSStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *WSStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeTimeout))
		err = s.conn.Close()
	})
	return err
}

func (s *WSStream) readLoop() {
	defer close(s.msgs)

	_ = s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	s.conn.SetPongHandler(func(string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		_, b, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				err = ErrStreamClosed
			default:
			}
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(readTimeout))

		select {
		case s.msgs <- b:
		case <-s.done:
			s.mu.Lock()
			s.err = ErrStreamClosed
			s.mu.Unlock()
			return
		}
	}
}

func (s *WSStream) pingLoop() {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-t.C:
			_ = s.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout))
		}
	}
}

// BuildStreamURL joins base and path, e.g. ("wss://fstream.binance.com", "/ws/btcusdt@markPrice").
func BuildStreamURL(base, path string) (string, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return "", errors.New("base url is empty")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}

var _ port.FeedStream = (*WSStream)(nil)
