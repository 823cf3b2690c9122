package fetch

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptohist/visioncrawl/internal/faults"
)

func testClient() *Client {
	cfg := DefaultConfig()
	cfg.RequestsPerSecond = 1000 // keep tests fast
	cfg.Burst = 1000
	return New(cfg)
}

func TestClient_Fetch(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantBody    string
		wantKind    func(error) bool
		wantWritten bool
	}{
		{
			name:        "success_streams_body",
			status:      http.StatusOK,
			body:        "archive bytes",
			wantBody:    "archive bytes",
			wantWritten: true,
		},
		{
			name:     "not_found",
			status:   http.StatusNotFound,
			body:     "not here",
			wantKind: faults.IsNotFound,
		},
		{
			name:     "server_error_is_transient",
			status:   http.StatusInternalServerError,
			wantKind: faults.IsTransient,
		},
		{
			name:     "rate_limited_is_transient",
			status:   http.StatusTooManyRequests,
			wantKind: faults.IsTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			var dst bytes.Buffer
			err := testClient().Fetch(context.Background(), server.URL, &dst)

			if tt.wantKind != nil {
				require.Error(t, err)
				assert.True(t, tt.wantKind(err))
				assert.Empty(t, dst.String(), "nothing may be written on a failed fetch")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBody, dst.String())
		})
	}
}

func TestClient_TransportFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	var dst bytes.Buffer
	err := testClient().Fetch(context.Background(), server.URL, &dst)
	require.Error(t, err)
	assert.True(t, faults.IsTransient(err))
}

func TestClient_NotFoundDoesNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 1000
	cfg.BreakerFailures = 2
	client := New(cfg)

	// Far more 404s than the failure threshold: the breaker must stay
	// closed because a 404 is an answer, not a store failure.
	for i := 0; i < 10; i++ {
		var dst bytes.Buffer
		err := client.Fetch(context.Background(), server.URL, &dst)
		require.Error(t, err)
		assert.True(t, faults.IsNotFound(err), "iteration %d", i)
	}
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 1000
	cfg.BreakerFailures = 3
	client := New(cfg)

	for i := 0; i < 5; i++ {
		var dst bytes.Buffer
		err := client.Fetch(context.Background(), server.URL, &dst)
		require.Error(t, err)
		assert.True(t, faults.IsTransient(err))
	}
}
