package juicer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDisplayTimePolicy(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected DisplayTimePolicy
		wantErr  bool
	}{
		{name: "preserve", input: "preserve", expected: DisplayTimePreserve},
		{name: "refresh", input: "refresh", expected: DisplayTimeRefresh},
		{name: "empty defaults to preserve", input: "", expected: DisplayTimePreserve},
		{name: "unknown", input: "sometimes", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDisplayTimePolicy(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCountsAdd(t *testing.T) {
	var c Counts
	c.Add(UpsertResult{Inserted: true})
	c.Add(UpsertResult{Updated: true})
	c.Add(UpsertResult{Updated: true})
	c.Add(UpsertResult{})

	assert.Equal(t, Counts{Inserted: 1, Updated: 2}, c)
}

func TestJitterDuration_WithinBounds(t *testing.T) {
	j := Jitter{Min: 151 * time.Second, Max: 299 * time.Second}
	require.NoError(t, j.Validate())

	for range 1000 {
		d := j.Duration()
		assert.GreaterOrEqual(t, d, j.Min)
		assert.LessOrEqual(t, d, j.Max)
	}
}

func TestJitterDuration_Degenerate(t *testing.T) {
	j := Jitter{Min: time.Second, Max: time.Second}
	assert.Equal(t, time.Second, j.Duration())
}

func TestJitterValidate(t *testing.T) {
	assert.ErrorIs(t, Jitter{Min: 2 * time.Second, Max: time.Second}.Validate(), ErrConfig)
	assert.ErrorIs(t, Jitter{Min: -time.Second, Max: time.Second}.Validate(), ErrConfig)
	assert.NoError(t, Jitter{}.Validate())
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestErrorTaxonomy(t *testing.T) {
	assert.ErrorIs(t, ErrNavigationFailed, ErrRender)
	assert.ErrorIs(t, ErrFeedNotReady, ErrRender)
	assert.ErrorIs(t, ErrStoreUnavailable, ErrStore)
	assert.ErrorIs(t, ErrStoreWrite, ErrStore)
	assert.NotErrorIs(t, ErrFeedNotReady, ErrStore)
}
