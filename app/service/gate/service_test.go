package gate

import (
	"sync"
	"testing"

	"github.com/samber/do"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yizucodes/interview-agent/app/config"
)

func newTestGate(t *testing.T, maxSessions int) *Service {
	t.Helper()

	di := do.New()
	do.ProvideValue(di, &config.Config{
		Interview: config.Interview{
			MaxConcurrentSessions: maxSessions,
		},
	})

	svc, err := New(di)
	require.NoError(t, err)

	return svc
}

func TestTryAcquireRespectsLimit(t *testing.T) {
	svc := newTestGate(t, 2)

	assert.True(t, svc.TryAcquire())
	assert.True(t, svc.TryAcquire())
	assert.False(t, svc.TryAcquire())
	assert.Equal(t, 2, svc.Active())

	svc.Release()

	assert.True(t, svc.TryAcquire())
	assert.Equal(t, 2, svc.Active())
}

func TestRejectedAcquireHasNoEffect(t *testing.T) {
	svc := newTestGate(t, 1)

	require.True(t, svc.TryAcquire())

	for i := 0; i < 10; i++ {
		assert.False(t, svc.TryAcquire())
	}

	assert.Equal(t, 1, svc.Active())

	svc.Release()
	assert.Equal(t, 0, svc.Active())
}

func TestReleaseClampsAtZero(t *testing.T) {
	svc := newTestGate(t, 3)

	svc.Release()
	svc.Release()
	assert.Equal(t, 0, svc.Active())

	assert.True(t, svc.TryAcquire())
	assert.Equal(t, 1, svc.Active())
}

func TestConcurrentAcquireNeverExceedsLimit(t *testing.T) {
	const (
		maxSessions = 5
		workers     = 50
	)

	svc := newTestGate(t, maxSessions)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		acquired int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if svc.TryAcquire() {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, maxSessions, acquired)
	assert.Equal(t, maxSessions, svc.Active())
}

func TestAcquireReleaseChurn(t *testing.T) {
	svc := newTestGate(t, 3)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				if svc.TryAcquire() {
					svc.Release()
				}
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 0, svc.Active())
}
