package iracing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(
		Credentials{Email: "test@example.com", Password: "secret"},
		WithBaseURL(baseURL),
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
		WithRateLimitDelay(0),
	)
	require.NoError(t, err)
	return c
}

func pointerTo(link string) string {
	return fmt.Sprintf(`{"link": %q}`, link)
}

func TestGetAndReadFollowsPointer(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/data/results/get", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.URL.Query().Get("subsession_id"))
		fmt.Fprint(w, pointerTo(srv.URL+"/payload"))
	})
	mux.HandleFunc("/payload", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"subsession_id": 42}`)
	})

	c := newTestClient(t, srv.URL)
	data, err := c.FetchSubsession(context.Background(), 42)
	require.NoError(t, err)
	assert.JSONEq(t, `{"subsession_id": 42}`, string(data))
}

func TestGetWithRetryExhaustsBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.FetchSubsession(context.Background(), 1)

	var exhausted *RetriesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, maxAttempts, exhausted.Attempts)
	assert.Equal(t, http.StatusInternalServerError, exhausted.LastStatus)
	assert.Equal(t, int32(maxAttempts), calls.Load())
}

func TestGetWithRetryRecoversFromServerError(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/data/results/get", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, pointerTo(srv.URL+"/payload"))
	})
	mux.HandleFunc("/payload", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})

	c := newTestClient(t, srv.URL)
	_, err := c.FetchSubsession(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int32(4), calls.Load())
}

func TestGetWithRetryReauthenticatesOnce(t *testing.T) {
	var authCalls, getCalls atomic.Int32
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		authCalls.Add(1)
	})
	mux.HandleFunc("/data/results/get", func(w http.ResponseWriter, r *http.Request) {
		if getCalls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, pointerTo(srv.URL+"/payload"))
	})
	mux.HandleFunc("/payload", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})

	c := newTestClient(t, srv.URL)
	_, err := c.FetchSubsession(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), authCalls.Load())
}

func TestGetWithRetryReauthOnLastAttempt(t *testing.T) {
	var authCalls, getCalls atomic.Int32
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		authCalls.Add(1)
	})
	mux.HandleFunc("/data/results/get", func(w http.ResponseWriter, r *http.Request) {
		switch n := getCalls.Add(1); {
		case n < maxAttempts:
			w.WriteHeader(http.StatusBadGateway)
		case n == int32(maxAttempts):
			w.WriteHeader(http.StatusUnauthorized)
		default:
			fmt.Fprint(w, pointerTo(srv.URL+"/payload"))
		}
	})
	mux.HandleFunc("/payload", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})

	c := newTestClient(t, srv.URL)
	_, err := c.FetchSubsession(context.Background(), 1)
	require.NoError(t, err,
		"a session expiring on the final attempt still gets its retry")
	assert.Equal(t, int32(1), authCalls.Load())
	assert.Equal(t, int32(maxAttempts+1), getCalls.Load())
}

func TestGetWithRetryFailsWhenStillUnauthorized(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/data/results/get", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	c := newTestClient(t, srv.URL)
	_, err := c.FetchSubsession(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
}

func TestGetWithRetryForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.FetchSubsession(context.Background(), 1)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGetWithRetryRateLimited(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/data/results/get", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, pointerTo(srv.URL+"/payload"))
	})
	mux.HandleFunc("/payload", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})

	c := newTestClient(t, srv.URL)
	_, err := c.FetchSubsession(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetWithRetryFatalOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.FetchSubsession(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "client errors must not be retried")
}

func TestRateLimitStateFromHeaders(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/data/results/get", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-ratelimit-limit", "240")
		w.Header().Set("x-ratelimit-remaining", "119")
		w.Header().Set("x-ratelimit-reset", "1700000000")
		fmt.Fprint(w, pointerTo(srv.URL+"/payload"))
	})
	mux.HandleFunc("/payload", func(w http.ResponseWriter, r *http.Request) {
		// no headers here, previous values must survive
		fmt.Fprint(w, `{}`)
	})

	c := newTestClient(t, srv.URL)
	_, err := c.FetchSubsession(context.Background(), 1)
	require.NoError(t, err)

	rl := c.RateLimitState()
	assert.Equal(t, int64(240), rl.Limit)
	assert.Equal(t, int64(119), rl.Remaining)
	assert.Equal(t, int64(1700000000), rl.Reset)
}

func TestGetAndReadChunked(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/data/results/search_series",
		func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `{
				"data": {
					"chunk_info": {
						"base_download_url": %q,
						"chunk_file_names": ["c0.json", "c1.json", "c2.json"]
					}
				}
			}`, srv.URL+"/chunks/")
		})
	mux.HandleFunc("/chunks/c0.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"subsession_id": 1}, {"subsession_id": 2}]`)
	})
	mux.HandleFunc("/chunks/c1.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("/chunks/c2.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"subsession_id": 3}]`)
	})

	c := newTestClient(t, srv.URL)
	ids, err := c.SearchSeries(context.Background(), SearchSeriesParams{
		Year: 2023, Quarter: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids, "chunk order must be preserved")
}

func TestGetAndReadChunkedEmptyManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"data": {"chunk_info": {}}}`)
		}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ids, err := c.SearchSeries(context.Background(), SearchSeriesParams{
		Year: 2023, Quarter: 1,
	})
	require.NoError(t, err)
	assert.Empty(t, ids)
}
