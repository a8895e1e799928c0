package polling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	mu           sync.Mutex
	polls        int
	persisted    []int
	audited      []int
	initialized  bool
	cleanedUp    bool
	pollErr      error
	auditReject  bool
	persistErr   error
	stopAfter    int
	cancel       context.CancelFunc
}

func (s *fakeService) Name() string { return "fake" }

func (s *fakeService) Initialize(ctx context.Context) error {
	s.initialized = true
	return nil
}

func (s *fakeService) Poll(ctx context.Context) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if s.stopAfter > 0 && s.polls >= s.stopAfter && s.cancel != nil {
		s.cancel()
	}
	if s.pollErr != nil {
		return 0, false, s.pollErr
	}
	return s.polls, true, nil
}

func (s *fakeService) Audit(ctx context.Context, reading int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audited = append(s.audited, reading)
	return !s.auditReject
}

func (s *fakeService) Persist(ctx context.Context, reading int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persistErr != nil {
		return s.persistErr
	}
	s.persisted = append(s.persisted, reading)
	return nil
}

func (s *fakeService) Cleanup(ctx context.Context) error {
	s.cleanedUp = true
	return nil
}

func TestLoopRunsCyclesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc := &fakeService{stopAfter: 3, cancel: cancel}

	loop := New[int](svc, time.Millisecond, nil, zerolog.Nop())
	err := loop.Run(ctx)

	require.NoError(t, err)
	assert.True(t, svc.initialized)
	assert.True(t, svc.cleanedUp)
	assert.GreaterOrEqual(t, len(svc.persisted), 3)
}

func TestLoopSkipsPersistWhenAuditRejects(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc := &fakeService{stopAfter: 2, cancel: cancel, auditReject: true}

	loop := New[int](svc, time.Millisecond, nil, zerolog.Nop())
	require.NoError(t, loop.Run(ctx))

	assert.NotEmpty(t, svc.audited)
	assert.Empty(t, svc.persisted)
}

func TestLoopInvokesErrorHandlerAndContinues(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc := &fakeService{stopAfter: 3, cancel: cancel, pollErr: errors.New("sensor timeout")}

	var mu sync.Mutex
	var handledErrs int
	loop := New[int](svc, time.Millisecond, func(err error) {
		mu.Lock()
		handledErrs++
		mu.Unlock()
	}, zerolog.Nop())

	require.NoError(t, loop.Run(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, handledErrs, 0)
}

func TestNewDefaultsFrequencyAndErrorHandler(t *testing.T) {
	svc := &fakeService{}
	loop := New[int](svc, 0, nil, zerolog.Nop())
	assert.Equal(t, time.Second, loop.frequency)
	assert.NotNil(t, loop.onError)
}
