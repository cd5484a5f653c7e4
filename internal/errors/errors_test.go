package errors_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jerrs "github.com/jdholdren/juicer/internal/errors"
	"github.com/jdholdren/juicer/internal/juicer"
)

func TestEConstructor(t *testing.T) {
	got := jerrs.E(
		"limit must be a number",
		jerrs.Detail{Field: "limit", Error: "not a number"},
		http.StatusBadRequest,
	)
	want := &jerrs.Error{
		Err: errors.New("limit must be a number"),
		Details: []jerrs.Detail{
			{Field: "limit", Error: "not a number"},
		},
		Status: http.StatusBadRequest,
	}

	assert.Equal(t, want, got)
}

func TestEDefaults(t *testing.T) {
	got := jerrs.E()
	assert.Equal(t, http.StatusInternalServerError, got.Status)
	assert.EqualError(t, got.Err, "Internal Server Error")
}

func TestUnwrap(t *testing.T) {
	err := jerrs.E(juicer.ErrStoreUnavailable, http.StatusServiceUnavailable)
	assert.ErrorIs(t, err, juicer.ErrStore)
}

func TestMarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		err  *jerrs.Error
		want string
	}{
		{
			name: "client error keeps its message",
			err:  jerrs.E("bad limit", http.StatusBadRequest, jerrs.Detail{Field: "limit", Error: "too big"}),
			want: `{"message":"bad limit","details":[{"field":"limit","error":"too big"}],"status":400}`,
		},
		{
			name: "server error hides its cause",
			err:  jerrs.E(errors.New("connection refused 10.0.0.3:27017"), http.StatusServiceUnavailable),
			want: `{"message":"Service Unavailable","details":null,"status":503}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			byts, err := json.Marshal(tt.err)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(byts))

			var back jerrs.Error
			require.NoError(t, json.Unmarshal(byts, &back))
			assert.Equal(t, tt.err.Status, back.Status)
		})
	}
}
