package embodiment

import (
	"context"
	"strings"
)

// Mode selects how commands and audio reach the backend.
type Mode int

const (
	// ModeDirectAudio streams synthesized audio frames over the companion
	// socket. True realtime audio is unavailable without that socket.
	ModeDirectAudio Mode = iota
	// ModeManaged routes all commands through the room broadcast channel and
	// lets the backend synthesize speech itself.
	ModeManaged
)

// Descriptor is the small capability bundle that distinguishes one backend
// from another. A single [Session] state machine drives every backend; only
// the descriptor differs.
type Descriptor struct {
	Name string
	Mode Mode

	// RequiresAudioTrack / RequiresVideoTrack define when the session can
	// move to stream-ready.
	RequiresAudioTrack bool
	RequiresVideoTrack bool

	// Bootstrap performs the external token-bootstrap call. Defaults to
	// SessionContext.StartEmbodimentSession.
	Bootstrap func(ctx context.Context, sc SessionContext, embodimentID string) (*Credentials, error)

	// IsEmbodimentParticipant recognizes the room participant whose tracks
	// and data packets belong to this backend.
	IsEmbodimentParticipant func(identity string) bool
}

func (d Descriptor) bootstrap(ctx context.Context, sc SessionContext, embodimentID string) (*Credentials, error) {
	if d.Bootstrap != nil {
		return d.Bootstrap(ctx, sc, embodimentID)
	}
	return sc.StartEmbodimentSession(ctx, embodimentID)
}

func (d Descriptor) isEmbodimentParticipant(identity string) bool {
	if d.IsEmbodimentParticipant != nil {
		return d.IsEmbodimentParticipant(identity)
	}
	return strings.HasPrefix(identity, d.Name)
}

// AvatarDescriptor describes a lip-synced video avatar delivered over the
// media room, with an optional companion socket for realtime audio.
func AvatarDescriptor() Descriptor {
	return Descriptor{
		Name:               "avatar",
		Mode:               ModeDirectAudio,
		RequiresAudioTrack: true,
		RequiresVideoTrack: true,
	}
}

// ManagedAvatarDescriptor describes an avatar whose speech is synthesized by
// the backend itself; commands go over the room broadcast channel.
func ManagedAvatarDescriptor() Descriptor {
	d := AvatarDescriptor()
	d.Mode = ModeManaged
	return d
}

// GesturalDescriptor describes a physical device that performs gestures. It
// has no media room presence; everything rides the direct socket.
func GesturalDescriptor() Descriptor {
	return Descriptor{
		Name: "gestural",
		Mode: ModeDirectAudio,
	}
}
