package monitor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yizucodes/interview-agent/app/client/roomrtc"
)

var (
	human = roomrtc.Participant{Identity: "candidate", Kind: roomrtc.KindHuman}
	agent = roomrtc.Participant{Identity: "interviewer-agent", Kind: roomrtc.KindAgent}
)

// scriptedLister replays a fixed sequence of observations, then repeats the
// last one forever.
type scriptedLister struct {
	mu     sync.Mutex
	script []func() ([]roomrtc.Participant, error)
	calls  int
}

func (l *scriptedLister) Occupants(_ context.Context) ([]roomrtc.Participant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.calls
	if idx >= len(l.script) {
		idx = len(l.script) - 1
	}
	l.calls++

	return l.script[idx]()
}

func (l *scriptedLister) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.calls
}

func occupants(participants ...roomrtc.Participant) func() ([]roomrtc.Participant, error) {
	return func() ([]roomrtc.Participant, error) {
		return participants, nil
	}
}

func failure(err error) func() ([]roomrtc.Participant, error) {
	return func() ([]roomrtc.Participant, error) {
		return nil, err
	}
}

func newTestMonitor(lister OccupantLister, idleTimeout time.Duration) *Monitor {
	return &Monitor{
		roomName:      "interview-test",
		occupants:     lister,
		activity:      NewClock(),
		checkInterval: 5 * time.Millisecond,
		gracePeriod:   5 * time.Millisecond,
		idleTimeout:   idleTimeout,
	}
}

func TestReapsEmptyRoomAfterGracePeriod(t *testing.T) {
	lister := &scriptedLister{script: []func() ([]roomrtc.Participant, error){
		occupants(agent),
	}}
	m := newTestMonitor(lister, time.Hour)

	reason, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ReapEmpty, reason)
	// First observation plus the post-grace re-check.
	assert.GreaterOrEqual(t, lister.callCount(), 2)
}

func TestDoesNotReapWhenHumanReturnsDuringGrace(t *testing.T) {
	lister := &scriptedLister{script: []func() ([]roomrtc.Participant, error){
		occupants(agent),
		occupants(agent, human),
	}}
	m := newTestMonitor(lister, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	reason, err := m.Run(ctx)

	assert.Empty(t, reason)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, lister.callCount(), 2)
}

func TestReapsIdleSession(t *testing.T) {
	lister := &scriptedLister{script: []func() ([]roomrtc.Participant, error){
		occupants(human),
	}}
	m := newTestMonitor(lister, time.Millisecond)

	reason, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ReapIdle, reason)
}

func TestActivityDefersIdleReap(t *testing.T) {
	lister := &scriptedLister{script: []func() ([]roomrtc.Participant, error){
		occupants(human),
	}}
	m := newTestMonitor(lister, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	var reason Reason
	var err error

	go func() {
		defer close(done)
		reason, err = m.Run(ctx)
	}()

	// Keep touching the activity clock so the idle timeout never fires.
	touchUntil := time.After(120 * time.Millisecond)
touching:
	for {
		select {
		case <-touchUntil:
			break touching
		case <-time.After(10 * time.Millisecond):
			m.activity.Touch()
		}
	}

	cancel()
	<-done

	assert.Empty(t, reason)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCancellationPropagates(t *testing.T) {
	lister := &scriptedLister{script: []func() ([]roomrtc.Participant, error){
		occupants(human),
	}}
	m := newTestMonitor(lister, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reason, err := m.Run(ctx)

	assert.Empty(t, reason)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransientObservationErrorsAreTolerated(t *testing.T) {
	lister := &scriptedLister{script: []func() ([]roomrtc.Participant, error){
		failure(fmt.Errorf("room service hiccup")),
		failure(fmt.Errorf("room service hiccup")),
		occupants(human),
	}}
	m := newTestMonitor(lister, 40*time.Millisecond)

	reason, err := m.Run(context.Background())
	require.NoError(t, err)

	// The monitor survived the failed ticks and eventually reaped on idle.
	assert.Equal(t, ReapIdle, reason)
	assert.GreaterOrEqual(t, lister.callCount(), 3)
}

func TestAgentOnlyRoomCountsAsEmpty(t *testing.T) {
	lister := &scriptedLister{script: []func() ([]roomrtc.Participant, error){
		occupants(agent, agent),
	}}
	m := newTestMonitor(lister, time.Hour)

	reason, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ReapEmpty, reason)
}
