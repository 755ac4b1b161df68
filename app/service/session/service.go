package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/do"
	"github.com/yizucodes/interview-agent/app/client/roomrtc"
	"github.com/yizucodes/interview-agent/app/config"
	"github.com/yizucodes/interview-agent/app/service/gate"
	"github.com/yizucodes/interview-agent/app/service/interview"
	"github.com/yizucodes/interview-agent/app/service/monitor"
	"github.com/yizucodes/interview-agent/app/service/voice"
)

// ErrAtCapacity rejects a job before any per-session resources are created.
var ErrAtCapacity = errors.New("maximum concurrent sessions reached")

type voiceSession interface {
	Say(ctx context.Context, text string) error
	Close() error
}

type voiceEngine interface {
	Start(ctx context.Context, room *roomrtc.Room) (voiceSession, error)
}

type voiceEngineAdapter struct {
	svc *voice.Service
}

func (a voiceEngineAdapter) Start(ctx context.Context, room *roomrtc.Room) (voiceSession, error) {
	session, err := a.svc.Start(ctx, room)
	if err != nil {
		return nil, err
	}

	return session, nil
}

// Service runs the lifecycle of one interview per job: capacity admission,
// room connection, voice session, activity monitoring and ordered teardown.
type Service struct {
	cfg        *config.Config
	gateSvc    *gate.Service
	roomClient *roomrtc.Client
	voiceSvc   voiceEngine
	interview  *interview.Service
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		cfg:        do.MustInvoke[*config.Config](di),
		gateSvc:    do.MustInvoke[*gate.Service](di),
		roomClient: do.MustInvoke[*roomrtc.Client](di),
		voiceSvc:   voiceEngineAdapter{svc: do.MustInvoke[*voice.Service](di)},
		interview:  do.MustInvoke[*interview.Service](di),
	}, nil
}

type monitorResult struct {
	reason monitor.Reason
	err    error
}

// Run executes a single interview session to completion. The capacity slot
// is released exactly once, after the monitor has acknowledged cancellation
// and the voice session and room connection are closed.
func (s *Service) Run(ctx context.Context, job roomrtc.JobRequest) error {
	if !s.gateSvc.TryAcquire() {
		return fmt.Errorf("rejecting job for room %s: %w", job.RoomName, ErrAtCapacity)
	}
	defer s.gateSvc.Release()

	room, err := s.roomClient.Connect(ctx, job.RoomName)
	if err != nil {
		return fmt.Errorf("failed to connect to room %s: %w", job.RoomName, err)
	}
	defer room.Close()

	activity := monitor.NewClock()

	room.OnTrackSubscribed(touchOnHumanAudioTrack(activity))
	room.OnAudioFrame(touchOnHumanAudio(activity))

	conversation, err := s.voiceSvc.Start(ctx, room)
	if err != nil {
		return fmt.Errorf("failed to start voice session for room %s: %w", job.RoomName, err)
	}
	defer conversation.Close()

	// A failed greeting is not fatal: the candidate can still speak first.
	if err = conversation.Say(ctx, s.interview.Greeting()); err != nil {
		slog.Warn("Failed to deliver greeting",
			"room", job.RoomName,
			"error", err)
	}

	monitorCtx, cancelMonitor := context.WithCancel(ctx)
	defer cancelMonitor()

	mon := monitor.New(job.RoomName, roomOccupants{room}, activity, s.cfg.Interview)

	monitorDone := make(chan monitorResult, 1)
	go func() {
		reason, runErr := mon.Run(monitorCtx)
		monitorDone <- monitorResult{reason: reason, err: runErr}
	}()

	select {
	case result := <-monitorDone:
		if result.err != nil {
			if errors.Is(result.err, context.Canceled) {
				return nil
			}

			return fmt.Errorf("monitor failed for room %s: %w", job.RoomName, result.err)
		}

		slog.Info("Reaping session",
			"room", job.RoomName,
			"reason", result.reason)

		return nil

	case <-room.Done():
		slog.Info("Room connection closed", "room", job.RoomName)

	case <-ctx.Done():
	}

	cancelMonitor()
	<-monitorDone

	return nil
}

// Dispatch pulls jobs from the agent endpoint and runs each session in its
// own goroutine, redialing with backoff when the job stream drops.
func (s *Service) Dispatch(ctx context.Context) {
	for {
		if err := s.dispatchOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}

			slog.Error("Job stream failed, redialing", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (s *Service) dispatchOnce(ctx context.Context) error {
	jobs, err := s.roomClient.DialJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to dial jobs: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job, ok := <-jobs:
			if !ok {
				return fmt.Errorf("job stream closed")
			}

			go func() {
				runErr := s.Run(ctx, job)
				switch {
				case runErr == nil:
				case errors.Is(runErr, ErrAtCapacity):
					slog.Warn("Job rejected at capacity", "room", job.RoomName)
				default:
					slog.Error("Session ended with error",
						"room", job.RoomName,
						"error", runErr)
				}
			}()
		}
	}
}

// Only human activity counts toward the idle clock. Agent-originated audio
// (another agent instance, or a server echoing our own published speech)
// must never defer the idle reap.
func touchOnHumanAudioTrack(activity *monitor.Clock) func(roomrtc.TrackEvent) {
	return func(event roomrtc.TrackEvent) {
		if event.Track == roomrtc.TrackAudio && !event.Participant.IsAgent() {
			activity.Touch()
		}
	}
}

func touchOnHumanAudio(activity *monitor.Clock) func(roomrtc.Participant, []byte) {
	return func(participant roomrtc.Participant, _ []byte) {
		if !participant.IsAgent() {
			activity.Touch()
		}
	}
}

// roomOccupants adapts a live room connection to the monitor's lister.
type roomOccupants struct {
	room *roomrtc.Room
}

func (r roomOccupants) Occupants(_ context.Context) ([]roomrtc.Participant, error) {
	select {
	case <-r.room.Done():
		return nil, fmt.Errorf("room connection closed")
	default:
	}

	return r.room.RemoteParticipants(), nil
}
