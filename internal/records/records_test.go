package records

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/resilience"
)

func TestParseType(t *testing.T) {
	rt, err := ParseType(" Team ")
	require.NoError(t, err)
	assert.Equal(t, TypeTeam, rt)

	_, err = ParseType("documents")
	assert.ErrorIs(t, err, apperrors.ErrUnknownRecordType)
}

func TestTaskIsOverdue(t *testing.T) {
	now := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		task Task
		want bool
	}{
		{"past target open", Task{TargetDate: "2024-06-14", Status: "Open"}, true},
		{"target today", Task{TargetDate: "2024-06-15", Status: "Open"}, false},
		{"past target resolved", Task{TargetDate: "2024-01-01", Status: "Resolved"}, false},
		{"past target approved", Task{TargetDate: "2024-01-01", Status: "Approved"}, false},
		{"no target", Task{Status: "Open"}, false},
		{"bad date", Task{TargetDate: "14/06/2024", Status: "Open"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.task.IsOverdue(now))
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Task{Key: "T-1", Title: "x"}.Validate())
	assert.ErrorIs(t, Task{Title: "x"}.Validate(), apperrors.ErrMalformedRecord)
	assert.ErrorIs(t, Task{Key: "T-1"}.Validate(), apperrors.ErrMalformedRecord)
	assert.ErrorIs(t, TeamMember{Name: "Ann"}.Validate(), apperrors.ErrMalformedRecord)
	assert.ErrorIs(t, LegislationReference{Code: "GDPR"}.Validate(), apperrors.ErrMalformedRecord)
}

func TestTaskMapCarriesOverdueAndEmptyLists(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	m := Task{Key: "T-1", Title: "x", TargetDate: "2024-01-01", Status: "Open"}.Map(now)
	assert.Equal(t, true, m["is_overdue"])
	assert.Equal(t, []string{}, m["tags"])
}

func TestLegislationDisplayName(t *testing.T) {
	assert.Equal(t, "GDPR", LegislationReference{Title: "GDPR"}.DisplayName())
	assert.Equal(t, "General Data Protection Regulation",
		LegislationReference{Title: "GDPR", FullName: "General Data Protection Regulation"}.DisplayName())
}

type flakyStore struct {
	failures int32
	calls    atomic.Int32
	err      error
}

func (f *flakyStore) LoadTasks(context.Context) ([]Task, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, f.err
	}
	return []Task{{Key: "T-1", Title: "x"}}, nil
}

func (f *flakyStore) GetTask(context.Context, string) (*Task, error) { return nil, nil }
func (f *flakyStore) LoadTeamMembers(context.Context) ([]TeamMember, error) {
	return nil, nil
}
func (f *flakyStore) LoadLegislation(context.Context) ([]LegislationReference, error) {
	return nil, nil
}

func TestResilientRetriesTransientFailures(t *testing.T) {
	inner := &flakyStore{failures: 2, err: errors.New("connection reset")}
	s := NewResilient(inner, ResilientConfig{
		Backoff: resilience.Backoff{Attempts: 3, Initial: time.Millisecond},
	})
	tasks, err := s.LoadTasks(context.Background())
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.EqualValues(t, 3, inner.calls.Load())
}

func TestResilientDoesNotRetryMalformed(t *testing.T) {
	inner := &flakyStore{failures: 5, err: apperrors.ErrMalformedRecord}
	s := NewResilient(inner, ResilientConfig{
		Backoff: resilience.Backoff{Attempts: 3, Initial: time.Millisecond},
	})
	_, err := s.LoadTasks(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrMalformedRecord)
	assert.EqualValues(t, 1, inner.calls.Load())
}

func TestResilientOpensCircuit(t *testing.T) {
	inner := &flakyStore{failures: 100, err: errors.New("down")}
	s := NewResilient(inner, ResilientConfig{
		Backoff: resilience.Backoff{Attempts: 1},
		Breaker: resilience.BreakerConfig{Threshold: 2, Cooldown: time.Hour},
	})
	for i := 0; i < 2; i++ {
		_, err := s.LoadTasks(context.Background())
		require.Error(t, err)
	}
	_, err := s.LoadTasks(context.Background())
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.EqualValues(t, 2, inner.calls.Load())
	assert.Equal(t, resilience.StateOpen, s.BreakerState())
}
