package assessment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Kind
		wantErr bool
	}{
		{name: "performance", input: "performance", want: KindPerformance},
		{name: "mixed case folds", input: "Technology", want: KindTechnology},
		{name: "insight", input: "insight", want: KindInsight},
		{name: "unknown", input: "seo", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedKind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRequestValidation(t *testing.T) {
	_, err := NewRequest(Kind("bogus"), "https://example.com", time.Second, 0)
	assert.ErrorIs(t, err, ErrUnsupportedKind)

	_, err = NewRequest(KindPerformance, "", time.Second, 0)
	assert.Error(t, err)

	_, err = NewRequest(KindPerformance, "https://example.com", 0, 0)
	assert.Error(t, err)

	_, err = NewRequest(KindPerformance, "https://example.com", time.Second, -1)
	assert.Error(t, err)

	req, err := NewRequest(KindPerformance, "https://example.com", time.Second, 2)
	require.NoError(t, err)
	assert.Equal(t, PriorityNormal, req.Priority)
	assert.Equal(t, 2, req.Retries)
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "example.com", DomainOf("https://Example.com/path"))
	assert.Equal(t, "example.com:8080", DomainOf("http://example.com:8080"))
	assert.Equal(t, "example.com", DomainOf("example.com/"))
}

func TestAggregateConsistent(t *testing.T) {
	r := AggregateResult{
		TotalRequested: 2,
		CompletedCount: 1,
		FailedCount:    1,
		Outcomes:       map[Kind]Outcome{KindPerformance: {}},
		Errors:         map[Kind]string{KindInsight: "boom"},
	}
	assert.True(t, r.Consistent())

	r.FailedCount = 0
	assert.False(t, r.Consistent())
}

func TestFailedOutcome(t *testing.T) {
	req, err := NewRequest(KindInsight, "https://example.com/", time.Second, 0)
	require.NoError(t, err)

	started := time.Now().Add(-time.Second)
	out := FailedOutcome(req, started, "upstream exploded")

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, "example.com", out.Domain)
	assert.Equal(t, "upstream exploded", out.ErrorMessage)
	assert.Empty(t, out.Scores)
	assert.Equal(t, started, out.StartedAt)
	assert.False(t, out.CompletedAt.IsZero())
}
