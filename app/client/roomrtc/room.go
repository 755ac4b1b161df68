package roomrtc

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// Room is one live signaling connection. Event handlers are invoked from the
// read loop goroutine; handler registration is safe at any time.
type Room struct {
	name string
	conn *websocket.Conn

	writeMu sync.Mutex

	mu            sync.RWMutex
	participants  map[string]Participant
	trackHandlers []func(TrackEvent)
	audioHandlers []func(participant Participant, pcm []byte)

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newRoom(name string, conn *websocket.Conn) *Room {
	return &Room{
		name:         name,
		conn:         conn,
		participants: make(map[string]Participant),
		done:         make(chan struct{}),
	}
}

func (r *Room) Name() string {
	return r.name
}

// Done closes when the connection is gone for any reason.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

// RemoteParticipants snapshots the current occupants, excluding this agent's
// own connection.
func (r *Room) RemoteParticipants() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Participant, 0, len(r.participants))
	for _, p := range r.participants {
		result = append(result, p)
	}

	return result
}

// OnTrackSubscribed registers a handler for remote track subscriptions.
// Delivery order across events is not guaranteed; every event is eventually
// delivered while the connection lives.
func (r *Room) OnTrackSubscribed(handler func(TrackEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.trackHandlers = append(r.trackHandlers, handler)
}

// OnAudioFrame registers a handler for inbound PCM frames. The sending
// participant is forwarded so handlers can tell human speech from another
// agent's synthesized audio.
func (r *Room) OnAudioFrame(handler func(participant Participant, pcm []byte)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.audioHandlers = append(r.audioHandlers, handler)
}

// PublishAudio sends synthesized agent speech into the room.
func (r *Room) PublishAudio(pcm []byte) error {
	return r.send(envelope{
		Event: eventAudio,
		Data:  pcm,
	})
}

// PublishData sends a text payload, e.g. a caption of the agent's reply.
func (r *Room) PublishData(kind, text string) error {
	return r.send(envelope{
		Event: eventData,
		Kind:  kind,
		Text:  text,
	})
}

func (r *Room) send(msg envelope) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send %s to room %s: %w", msg.Event, r.name, err)
	}

	return nil
}

func (r *Room) Close() error {
	r.close(nil)
	return nil
}

func (r *Room) close(err error) {
	r.closeOnce.Do(func() {
		r.closeErr = err
		r.conn.Close()
		close(r.done)
	})
}

func (r *Room) readLoop() {
	for {
		var msg envelope
		if err := r.conn.ReadJSON(&msg); err != nil {
			r.close(err)
			return
		}

		switch msg.Event {
		case eventParticipantJoined:
			if msg.Participant == nil {
				continue
			}

			r.mu.Lock()
			r.participants[msg.Participant.Identity] = *msg.Participant
			r.mu.Unlock()

			slog.Info("Participant joined",
				"room", r.name,
				"identity", msg.Participant.Identity,
				"kind", msg.Participant.Kind)

		case eventParticipantLeft:
			if msg.Participant == nil {
				continue
			}

			r.mu.Lock()
			delete(r.participants, msg.Participant.Identity)
			r.mu.Unlock()

			slog.Info("Participant left",
				"room", r.name,
				"identity", msg.Participant.Identity)

		case eventTrackSubscribed:
			if msg.Participant == nil {
				continue
			}

			event := TrackEvent{
				Participant: *msg.Participant,
				Track:       msg.TrackKind,
			}

			r.mu.RLock()
			handlers := append(([]func(TrackEvent))(nil), r.trackHandlers...)
			r.mu.RUnlock()

			for _, handler := range handlers {
				handler(event)
			}

		case eventAudio:
			if msg.Participant == nil {
				continue
			}

			r.mu.RLock()
			handlers := append(([]func(Participant, []byte))(nil), r.audioHandlers...)
			r.mu.RUnlock()

			for _, handler := range handlers {
				handler(*msg.Participant, msg.Data)
			}
		}
	}
}
