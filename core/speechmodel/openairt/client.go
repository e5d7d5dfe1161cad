// Package openairt implements the speech-model link over the OpenAI
// realtime WebSocket protocol.
package openairt

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/jinzhu/copier"

	"github.com/embodielabs/presence-core/core/speechmodel"
)

const (
	defaultRealtimeURL = "wss://api.openai.com/v1/realtime"
	defaultModel       = "gpt-4o-realtime-preview"
)

type Client struct {
	connMu sync.Mutex
	conn   *websocket.Conn

	baseURL string
	model   string

	callbacks speechmodel.Callbacks

	closeOnce sync.Once
}

type ClientOption func(*Client)

func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{baseURL: defaultRealtimeURL, model: defaultModel}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Connect(ctx context.Context, callbacks speechmodel.Callbacks) error {
	apiKey, ok := os.LookupEnv("OPENAI_API_KEY")
	if !ok {
		return fmt.Errorf("openai api key not found")
	}

	realtimeURL, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid realtime url: %w", err)
	}
	queryParams := realtimeURL.Query()
	queryParams.Set("model", c.model)
	realtimeURL.RawQuery = queryParams.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, realtimeURL.String(), http.Header{
		"Authorization": {"Bearer " + apiKey},
		"OpenAI-Beta":   {"realtime=v1"},
	})
	if err != nil {
		return fmt.Errorf("failed to open socket connection to realtime model: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.callbacks = callbacks
	c.connMu.Unlock()

	go c.readAndProcessMessages(ctx, conn)
	return nil
}

func (c *Client) ConfigureSession(config speechmodel.SessionConfig) error {
	// Deep-copy so later caller mutations of tool schemas cannot alias the
	// payload under us.
	var snapshot speechmodel.SessionConfig
	if err := copier.CopyWithOption(&snapshot, &config, copier.Option{DeepCopy: true}); err != nil {
		return fmt.Errorf("failed to snapshot session config: %w", err)
	}

	return c.send(sessionUpdatePayload(snapshot))
}

func (c *Client) AppendAudio(audio []byte) error {
	return c.send(audioAppendPayload(audio))
}

func (c *Client) SubmitFunctionResult(callID, output string) error {
	if err := c.send(functionOutputPayload(callID, output)); err != nil {
		return err
	}
	return c.send(responseCreatePayload())
}

func (c *Client) CancelResponse() error {
	return c.send(responseCancelPayload())
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.connMu.Lock()
		conn := c.conn
		c.conn = nil
		c.connMu.Unlock()

		if conn != nil {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			err = conn.Close()
		}
	})
	return err
}

func (c *Client) send(payload map[string]any) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("realtime model not connected")
	}
	if err := c.conn.WriteJSON(payload); err != nil {
		return fmt.Errorf("failed to write to realtime model: %w", err)
	}
	return nil
}

func (c *Client) readAndProcessMessages(ctx context.Context, conn *websocket.Conn) {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			c.connMu.Lock()
			closedLocally := c.conn == nil
			c.conn = nil
			callbacks := c.callbacks
			c.connMu.Unlock()
			conn.Close()

			if !closedLocally && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Println("Realtime model socket closed", "error", err)
				if callbacks.OnEvent != nil {
					callbacks.OnEvent(transportErrorEvent(err))
				}
			}
			return
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		if event, ok := parseServerEvent(msg); ok {
			if c.callbacks.OnEvent != nil {
				c.callbacks.OnEvent(event)
			}
		}
	}
}
