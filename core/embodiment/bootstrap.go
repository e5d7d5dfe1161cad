package embodiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Credentials is the result of the external session bootstrap call.
type Credentials struct {
	RoomURL   string `json:"room_url"`
	RoomToken string `json:"room_token"`
	// SocketURL is the optional companion direct socket. Direct-audio mode
	// is unavailable without it.
	SocketURL  string `json:"socket_url,omitempty"`
	SessionID  string `json:"session_id"`
	MaxSeconds int    `json:"max_duration_seconds,omitempty"`
}

func (c Credentials) MaxDuration() time.Duration {
	return time.Duration(c.MaxSeconds) * time.Second
}

// SessionContext carries everything a bootstrap call needs. It is passed
// explicitly to every operation so no session token hides in package state
// and nothing leaks across conversations.
type SessionContext struct {
	BaseURL   string
	AuthToken string
	client    *http.Client
}

func NewSessionContext(baseURL, authToken string) SessionContext {
	return SessionContext{
		BaseURL:   baseURL,
		AuthToken: authToken,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   15 * time.Second,
		},
	}
}

// StartEmbodimentSession asks the backend for connection credentials for
// the given avatar/device identifier.
func (c SessionContext) StartEmbodimentSession(ctx context.Context, embodimentID string) (*Credentials, error) {
	ctx, span := tracer.Start(ctx, "bootstrap embodiment session")
	defer span.End()

	body, err := json.Marshal(struct {
		EmbodimentID string `json:"embodiment_id"`
	}{EmbodimentID: embodimentID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bootstrap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build bootstrap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("bootstrap call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		err := fmt.Errorf("bootstrap call returned status %d", resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var creds Credentials
	if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil {
		return nil, fmt.Errorf("failed to decode bootstrap response: %w", err)
	}

	span.AddEvent("session bootstrapped", trace.WithAttributes())
	return &creds, nil
}

// StopEmbodimentSession tells the backend to release the session. Best
// effort: callers treat failures as advisory.
func (c SessionContext) StopEmbodimentSession(ctx context.Context, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+"/v1/sessions/"+sessionID, nil)
	if err != nil {
		return fmt.Errorf("failed to build teardown request: %w", err)
	}
	if c.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("teardown call failed: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("teardown call returned status %d", resp.StatusCode)
	}
	return nil
}

func (c SessionContext) httpClient() *http.Client {
	if c.client != nil {
		return c.client
	}
	return http.DefaultClient
}
