package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	fail        bool
	wantPrimary bool
	wantOpened  bool
	wantClosed  bool
}

func TestBreakerSequences(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		successes int
		steps     []step
		wantState State
	}{
		{
			name:     "stays closed below the failure threshold",
			failures: 3,
			steps: []step{
				{fail: true, wantPrimary: true},
				{fail: true, wantPrimary: true},
			},
			wantState: StateClosed,
		},
		{
			name:     "opens on the threshold failure",
			failures: 3,
			steps: []step{
				{fail: true, wantPrimary: true},
				{fail: true, wantPrimary: true},
				{fail: true, wantOpened: true},
			},
			wantState: StateOpen,
		},
		{
			name:     "further failures while open report no change",
			failures: 1,
			steps: []step{
				{fail: true, wantOpened: true},
				{fail: true},
			},
			wantState: StateOpen,
		},
		{
			name:     "a success clears the failure streak",
			failures: 3,
			steps: []step{
				{fail: true, wantPrimary: true},
				{fail: true, wantPrimary: true},
				{wantPrimary: true},
				{fail: true, wantPrimary: true},
				{fail: true, wantPrimary: true},
			},
			wantState: StateClosed,
		},
		{
			name:      "closes after enough consecutive successes",
			failures:  1,
			successes: 2,
			steps: []step{
				{fail: true, wantOpened: true},
				{},
				{wantPrimary: true, wantClosed: true},
			},
			wantState: StateClosed,
		},
		{
			name:      "a failure while recovering restarts the success count",
			failures:  1,
			successes: 3,
			steps: []step{
				{fail: true, wantOpened: true},
				{},
				{},
				{fail: true},
				{},
				{},
			},
			wantState: StateOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("audit-kafka", WithFailureThreshold(tt.failures), WithSuccessThreshold(tt.successes))
			for i, s := range tt.steps {
				if s.fail {
					useFallback, change := b.RecordFailure()
					assert.Equal(t, !s.wantPrimary, useFallback, "step %d fallback", i)
					assert.Equal(t, s.wantOpened, change.Opened, "step %d opened", i)
					continue
				}
				usePrimary, change := b.RecordSuccess()
				assert.Equal(t, s.wantPrimary, usePrimary, "step %d primary", i)
				assert.Equal(t, s.wantClosed, change.Closed, "step %d closed", i)
			}
			assert.Equal(t, tt.wantState, b.State())
		})
	}
}

func TestBreakerDefaultsAndReset(t *testing.T) {
	b := New("audit-kafka")
	require.Equal(t, "audit-kafka", b.Name())
	require.False(t, b.IsOpen())

	for range 5 {
		b.RecordFailure()
	}
	require.True(t, b.IsOpen(), "default threshold is five failures")

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	usePrimary, _ := b.RecordSuccess()
	assert.True(t, usePrimary)
}
