package embodiment

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

type socketCallbacks struct {
	// onEvent receives inbound convention-A messages keyed by their `type`
	// field, with the raw message for payload extraction.
	onEvent func(kind string, raw []byte)
	// onClosed fires once when the read loop exits; err is nil on a clean
	// close.
	onClosed func(err error)
}

// directSocket is the companion bidirectional channel some backends expose
// next to the media room. Commands use convention A framing; the backend
// pushes its own events (speak started/ended, errors) over the same
// connection.
type directSocket struct {
	connMu sync.Mutex
	conn   *websocket.Conn

	closeOnce sync.Once
	callbacks socketCallbacks
}

func dialDirectSocket(socketURL string, callbacks socketCallbacks) (*directSocket, error) {
	conn, _, err := websocket.DefaultDialer.Dial(socketURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to embodiment backend: %w", err)
	}

	s := &directSocket{conn: conn, callbacks: callbacks}
	go s.readAndProcessMessages(conn)
	return s, nil
}

func (s *directSocket) Connected() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn != nil
}

func (s *directSocket) SendJSON(payload map[string]any) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("socket not connected")
	}
	if err := s.conn.WriteJSON(payload); err != nil {
		return fmt.Errorf("failed to write to embodiment socket: %w", err)
	}
	return nil
}

func (s *directSocket) Close() {
	s.closeOnce.Do(func() {
		s.connMu.Lock()
		conn := s.conn
		s.conn = nil
		s.connMu.Unlock()

		if conn != nil {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		}
	})
}

func (s *directSocket) readAndProcessMessages(conn *websocket.Conn) {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			s.connMu.Lock()
			closedLocally := s.conn == nil
			s.conn = nil
			s.connMu.Unlock()
			conn.Close()

			if closedLocally || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				err = nil
			}
			if s.callbacks.onClosed != nil {
				s.callbacks.onClosed(err)
			}
			return
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		var parsedMsg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &parsedMsg); err != nil {
			logger.Warn("failed to unmarshal embodiment socket message", "error", err)
			continue
		}
		if parsedMsg.Type == "" {
			continue
		}
		if s.callbacks.onEvent != nil {
			s.callbacks.onEvent(parsedMsg.Type, msg)
		}
	}
}
