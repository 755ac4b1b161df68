package roomrtc

type ParticipantKind string

const (
	// KindAgent marks automated occupants. They never count towards room
	// liveness and never refresh the activity clock.
	KindAgent ParticipantKind = "agent"
	KindHuman ParticipantKind = "human"
)

type Participant struct {
	Identity string          `json:"identity"`
	Kind     ParticipantKind `json:"kind"`
}

func (p Participant) IsAgent() bool {
	return p.Kind == KindAgent
}

type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// TrackEvent is delivered when a remote participant's media track becomes
// subscribed.
type TrackEvent struct {
	Participant Participant
	Track       TrackKind
}

// RoomInfo is one row of the server-side room listing.
type RoomInfo struct {
	Name            string `json:"name"`
	NumParticipants int    `json:"num_participants"`
}

// JobRequest asks the agent to join a freshly created room.
type JobRequest struct {
	RoomName string `json:"room"`
}

// envelope is the wire format of every signaling message.
type envelope struct {
	Event       string       `json:"event"`
	Room        string       `json:"room,omitempty"`
	Participant *Participant `json:"participant,omitempty"`
	TrackKind   TrackKind    `json:"track_kind,omitempty"`
	Data        []byte       `json:"data,omitempty"`
	Kind        string       `json:"kind,omitempty"`
	Text        string       `json:"text,omitempty"`
}

const (
	eventJob               = "job"
	eventParticipantJoined = "participant_joined"
	eventParticipantLeft   = "participant_left"
	eventTrackSubscribed   = "track_subscribed"
	eventAudio             = "audio"
	eventData              = "data"
)
