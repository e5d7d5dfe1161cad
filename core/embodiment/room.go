package embodiment

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
)

type roomCallbacks struct {
	// onTrackSubscribed fires for every media track from the recognized
	// embodiment participant; kind is "audio" or "video".
	onTrackSubscribed func(kind string)
	// onDataPacket receives inbound convention-B messages keyed by their
	// `event_type` field, with the raw payload for extraction.
	onDataPacket func(kind string, raw []byte)

	onParticipantJoined func(identity string)
	onParticipantLeft   func(identity string)
	onDisconnected      func()
}

// roomClient wraps the realtime media room the avatar is delivered through.
// Commands leave as reliable data packets on the broadcast topic; avatar
// audio/video arrive as subscribed tracks.
type roomClient struct {
	mu   sync.Mutex
	room *lksdk.Room

	// isEmbodimentParticipant recognizes the participant whose tracks and
	// data packets belong to the embodiment backend.
	isEmbodimentParticipant func(identity string) bool
	callbacks               roomCallbacks
}

const broadcastTopic = "embodiment"

func connectRoom(url, token string, isEmbodimentParticipant func(string) bool, callbacks roomCallbacks) (*roomClient, error) {
	c := &roomClient{
		isEmbodimentParticipant: isEmbodimentParticipant,
		callbacks:               callbacks,
	}

	room, err := lksdk.ConnectToRoomWithToken(url, token, c.roomCallback(),
		lksdk.WithAutoSubscribe(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to media room: %w", err)
	}

	c.mu.Lock()
	c.room = room
	c.mu.Unlock()
	return c, nil
}

func (c *roomClient) roomCallback() *lksdk.RoomCallback {
	return &lksdk.RoomCallback{
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: func(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				c.handleTrackSubscribed(pub, rp)
			},
			OnDataPacket: func(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
				c.handleDataPacket(data, params)
			},
		},
		OnParticipantConnected: func(rp *lksdk.RemoteParticipant) {
			if c.callbacks.onParticipantJoined != nil {
				c.callbacks.onParticipantJoined(rp.Identity())
			}
		},
		OnParticipantDisconnected: func(rp *lksdk.RemoteParticipant) {
			if c.callbacks.onParticipantLeft != nil {
				c.callbacks.onParticipantLeft(rp.Identity())
			}
		},
		OnDisconnected: func() {
			if c.callbacks.onDisconnected != nil {
				c.callbacks.onDisconnected()
			}
		},
	}
}

func (c *roomClient) handleTrackSubscribed(pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	if c.isEmbodimentParticipant != nil && !c.isEmbodimentParticipant(rp.Identity()) {
		return
	}

	var kind string
	switch {
	case pub.Kind() == lksdk.TrackKindAudio:
		kind = "audio"
	case pub.Kind() == lksdk.TrackKindVideo && pub.Source() == livekit.TrackSource_SCREEN_SHARE:
		// Screen shares are not avatar video.
		return
	case pub.Kind() == lksdk.TrackKindVideo:
		kind = "video"
	default:
		return
	}

	if c.callbacks.onTrackSubscribed != nil {
		c.callbacks.onTrackSubscribed(kind)
	}
}

func (c *roomClient) handleDataPacket(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
	if c.isEmbodimentParticipant != nil && !c.isEmbodimentParticipant(params.SenderIdentity) {
		return
	}

	userData, ok := data.(*lksdk.UserDataPacket)
	if !ok {
		return
	}

	var parsed struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(userData.Payload, &parsed); err != nil {
		logger.Warn("failed to unmarshal room data packet", "error", err)
		return
	}
	if parsed.EventType == "" {
		return
	}
	if c.callbacks.onDataPacket != nil {
		c.callbacks.onDataPacket(parsed.EventType, userData.Payload)
	}
}

func (c *roomClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room != nil
}

func (c *roomClient) SendJSON(payload map[string]any) error {
	c.mu.Lock()
	room := c.room
	c.mu.Unlock()

	if room == nil {
		return fmt.Errorf("room not connected")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal room command: %w", err)
	}
	if err := room.LocalParticipant.PublishDataPacket(
		lksdk.UserData(data),
		lksdk.WithDataPublishReliable(true),
		lksdk.WithDataPublishTopic(broadcastTopic),
	); err != nil {
		return fmt.Errorf("failed to publish room command: %w", err)
	}
	return nil
}

func (c *roomClient) Disconnect() {
	c.mu.Lock()
	room := c.room
	c.room = nil
	c.mu.Unlock()

	if room != nil {
		room.Disconnect()
	}
}
