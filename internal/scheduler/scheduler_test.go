package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lox/jmaweather/internal/forecast"
	"github.com/lox/jmaweather/internal/models"
)

type fakeRefresher struct {
	mu      sync.Mutex
	calls   []string
	reports map[string]forecast.RefreshReport
}

func (f *fakeRefresher) RefreshWithReport(ctx context.Context, areaCode string) ([]models.ForecastRecord, forecast.RefreshReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, areaCode)
	return nil, f.reports[areaCode]
}

func (f *fakeRefresher) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestRunOnce_RefreshesAreasInOrder(t *testing.T) {
	r := &fakeRefresher{reports: map[string]forecast.RefreshReport{
		"130000": {Stored: 3},
		"270000": {Sentinel: true},
		"016000": {Stored: 1, StoreErr: errors.New("locked")},
	}}
	s := New([]string{"130000", "270000", "016000"}, time.Hour, r, zap.NewNop())

	sum := s.RunOnce(context.Background())

	assert.Equal(t, []string{"130000", "270000", "016000"}, r.called())
	assert.Equal(t, Summary{Areas: 3, Sentinels: 1, Stored: 4, StoreErrs: 1}, sum)
}

func TestRunOnce_StopsOnCancelledContext(t *testing.T) {
	r := &fakeRefresher{}
	s := New([]string{"130000", "270000"}, time.Hour, r, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum := s.RunOnce(ctx)

	assert.Empty(t, r.called())
	assert.Zero(t, sum.Areas)
}

func TestStart_RunsFirstPassImmediately(t *testing.T) {
	r := &fakeRefresher{}
	s := New([]string{"130000"}, time.Hour, r, zap.NewNop())

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return len(r.called()) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStart_NoAreas(t *testing.T) {
	r := &fakeRefresher{}
	s := New(nil, time.Hour, r, zap.NewNop())

	require.NoError(t, s.Start())
	s.Stop()
	assert.Empty(t, r.called())
}
