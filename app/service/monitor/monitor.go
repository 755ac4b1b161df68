package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/elliotchance/pie/v2"
	"github.com/yizucodes/interview-agent/app/client/roomrtc"
	"github.com/yizucodes/interview-agent/app/config"
)

// Reason explains why the monitor decided to reap a session.
type Reason string

const (
	ReapEmpty Reason = "empty_room"
	ReapIdle  Reason = "idle_timeout"
)

// OccupantLister enumerates the current remote occupants of a room.
// Enumeration may fail transiently; the monitor tolerates that.
type OccupantLister interface {
	Occupants(ctx context.Context) ([]roomrtc.Participant, error)
}

// Monitor watches one session for an emptied room or user inactivity.
type Monitor struct {
	roomName  string
	occupants OccupantLister
	activity  *Clock

	checkInterval time.Duration
	gracePeriod   time.Duration
	idleTimeout   time.Duration
}

func New(roomName string, occupants OccupantLister, activity *Clock, cfg config.Interview) *Monitor {
	return &Monitor{
		roomName:      roomName,
		occupants:     occupants,
		activity:      activity,
		checkInterval: cfg.ActivityCheckInterval(),
		gracePeriod:   cfg.EmptyRoomGracePeriod(),
		idleTimeout:   cfg.IdleTimeout(),
	}
}

// Run polls until a reap condition is met or ctx is cancelled. Cancellation
// always propagates as ctx.Err(); transient observation errors are logged and
// the loop continues.
func (m *Monitor) Run(ctx context.Context) (Reason, error) {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		reason, err := m.tick(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}

			slog.Error("Activity monitor tick failed",
				"room", m.roomName,
				"error", err)
			continue
		}

		if reason != "" {
			return reason, nil
		}
	}
}

func (m *Monitor) tick(ctx context.Context) (Reason, error) {
	hasHumans, err := m.hasHumanOccupants(ctx)
	if err != nil {
		return "", err
	}

	// An empty first observation may be a reconnect race: wait out the
	// grace period and look again before reaping.
	if !hasHumans {
		if err = sleepCtx(ctx, m.gracePeriod); err != nil {
			return "", err
		}

		hasHumans, err = m.hasHumanOccupants(ctx)
		if err != nil {
			return "", err
		}

		if !hasHumans {
			slog.Info("Room empty after grace period", "room", m.roomName)
			return ReapEmpty, nil
		}
	}

	if time.Since(m.activity.Last()) > m.idleTimeout {
		slog.Info("Session idle timeout", "room", m.roomName)
		return ReapIdle, nil
	}

	return "", nil
}

func (m *Monitor) hasHumanOccupants(ctx context.Context) (bool, error) {
	participants, err := m.occupants.Occupants(ctx)
	if err != nil {
		return false, err
	}

	return pie.Any(participants, func(p roomrtc.Participant) bool {
		return !p.IsAgent()
	}), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
