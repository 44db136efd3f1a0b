package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stremovskyy/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePreference() *PreferenceRequest {
	return &PreferenceRequest{
		Items: []Item{{
			ID:          "voucher-spa",
			Title:       "Voucher Spa",
			Description: "Circuito de spa",
			Quantity:    1,
			UnitPrice:   42000,
			CurrencyID:  "ARS",
		}},
		BackURLs: BackURLs{
			Success: "http://localhost:4000/checkout/success",
			Pending: "http://localhost:4000/checkout/pending",
			Failure: "http://localhost:4000/checkout/failure",
		},
	}
}

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	base := []Option{WithBaseURL(srv.URL), WithAccessToken("TEST-token"), WithHTTPClient(srv.Client())}
	c, err := NewClient(append(base, opts...)...)
	require.NoError(t, err)
	return c
}

func TestCreatePreference_SendsAuthenticatedJSON(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PreferencesPath, r.URL.Path)
		assert.Equal(t, "Bearer TEST-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, err := uuid.Parse(r.Header.Get("X-Request-Id"))
		assert.NoError(t, err)

		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"pref-1","init_point":"https://pay.example/live","sandbox_init_point":"https://sandbox.pay.example/abc"}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv).CreatePreference(context.Background(), samplePreference())
	require.NoError(t, err)

	assert.Equal(t, "pref-1", resp.ID)
	assert.Equal(t, "https://pay.example/live", resp.InitPoint)
	assert.Equal(t, "https://sandbox.pay.example/abc", resp.SandboxInitPoint)

	items := got["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "voucher-spa", item["id"])
	assert.Equal(t, float64(1), item["quantity"])
	assert.Equal(t, float64(42000), item["unit_price"])
	assert.Equal(t, "ARS", item["currency_id"])

	backURLs := got["back_urls"].(map[string]any)
	assert.Equal(t, "http://localhost:4000/checkout/pending", backURLs["pending"])
}

func TestCreatePreference_NonSuccessIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("insufficient scope"))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).CreatePreference(context.Background(), samplePreference())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "insufficient scope", string(apiErr.Body))
	assert.True(t, IsAPIError(err))
}

func TestCreatePreference_NoRetryByDefault(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).CreatePreference(context.Background(), samplePreference())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCreatePreference_RetriesTransientWhenEnabled(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"init_point":"https://pay.example/abc"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithRetry(3, time.Millisecond))
	resp, err := c.CreatePreference(context.Background(), samplePreference())
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/abc", resp.InitPoint)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCreatePreference_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithRetry(3, time.Millisecond))
	_, err := c.CreatePreference(context.Background(), samplePreference())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCreatePreference_NarrowsMalformedURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"init_point":"javascript:alert(1)","sandbox_init_point":"https://sandbox.pay.example/abc"}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv).CreatePreference(context.Background(), samplePreference())
	require.NoError(t, err)
	assert.Empty(t, resp.InitPoint)
	assert.Equal(t, "https://sandbox.pay.example/abc", resp.SandboxInitPoint)
}

func TestCreatePreference_EmptyBodyFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv).CreatePreference(context.Background(), samplePreference())
	require.NoError(t, err)
	assert.Empty(t, resp.InitPoint)
	assert.Empty(t, resp.SandboxInitPoint)
}

func TestCreatePreference_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestClient(t, srv)
	srv.Close()

	_, err := c.CreatePreference(context.Background(), samplePreference())
	require.Error(t, err)
	assert.False(t, IsAPIError(err))
}

func TestCreatePreference_NotConfigured(t *testing.T) {
	c, err := NewClient()
	require.NoError(t, err)

	assert.False(t, c.Configured())
	_, err = c.CreatePreference(context.Background(), samplePreference())
	assert.ErrorIs(t, err, ErrNoAccessToken)
}

func TestNewClient_InvalidOptions(t *testing.T) {
	_, err := NewClient(WithBaseURL("not a url"))
	assert.Error(t, err)

	_, err = NewClient(WithTimeout(0))
	assert.Error(t, err)

	_, err = NewClient(WithRetry(0, time.Second))
	assert.Error(t, err)

	_, err = NewClient(WithHTTPClient(nil))
	assert.Error(t, err)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, isRetryable(nil))
	assert.False(t, isRetryable(errors.New("boom")))
	assert.False(t, isRetryable(context.Canceled))
	assert.True(t, isRetryable(&APIError{StatusCode: http.StatusInternalServerError}))
	assert.True(t, isRetryable(&APIError{StatusCode: http.StatusTooManyRequests}))
	assert.False(t, isRetryable(&APIError{StatusCode: http.StatusNotImplemented}))
	assert.False(t, isRetryable(&APIError{StatusCode: http.StatusUnauthorized}))
}

type countingRecorder struct {
	requests  int
	responses int
	errors    int
	lastID    string
}

func (r *countingRecorder) RecordRequest(_ context.Context, _ *string, requestID string, _ []byte, _ map[string]string) error {
	r.requests++
	r.lastID = requestID
	return nil
}

func (r *countingRecorder) RecordResponse(context.Context, *string, string, []byte, map[string]string) error {
	r.responses++
	return nil
}

func (r *countingRecorder) RecordError(context.Context, *string, string, error, map[string]string) error {
	r.errors++
	return nil
}

func (r *countingRecorder) RecordMetrics(context.Context, *string, string, map[string]string, map[string]string) error {
	return nil
}

func (r *countingRecorder) GetRequest(context.Context, string) ([]byte, error)  { return nil, nil }
func (r *countingRecorder) GetResponse(context.Context, string) ([]byte, error) { return nil, nil }
func (r *countingRecorder) FindByTag(context.Context, string) ([]string, error) { return nil, nil }
func (r *countingRecorder) Async() recorder.AsyncRecorder                       { return nil }

func TestCreatePreference_RecordsExchange(t *testing.T) {
	var gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get("X-Request-Id")
		if r.URL.Query().Get("fail") != "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"init_point":"https://pay.example/abc"}`))
	}))
	defer srv.Close()

	rec := &countingRecorder{}
	c := newTestClient(t, srv, WithRecorder(rec))

	_, err := c.CreatePreference(context.Background(), samplePreference())
	require.NoError(t, err)
	assert.Equal(t, 1, rec.requests)
	assert.Equal(t, 1, rec.responses)
	assert.Equal(t, 0, rec.errors)
	assert.Equal(t, gotID, rec.lastID)

	failing := newTestClient(t, srv, WithRecorder(rec), WithBaseURL(srv.URL+"/?fail=1"))
	_, err = failing.CreatePreference(context.Background(), samplePreference())
	require.Error(t, err)
	assert.Equal(t, 1, rec.errors)
}

func TestCreatePreference_RejectsNonObjectSuccessBody(t *testing.T) {
	for _, body := range []string{`null`, ` null `, `[]`, `"x"`, ``} {
		t.Run(body, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(body))
			}))
			defer srv.Close()

			resp, err := newTestClient(t, srv).CreatePreference(context.Background(), samplePreference())
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.False(t, IsAPIError(err))
		})
	}
}

func TestCreatePreference_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := c.CreatePreference(context.Background(), samplePreference())
	require.Error(t, err)
	assert.False(t, IsAPIError(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestLogRecorder_KeepsRecentExchanges(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"pref-1","init_point":"https://pay.example/abc"}`))
	}))
	defer srv.Close()

	rec := NewLogRecorder(nil, 2)
	c := newTestClient(t, srv, WithRecorder(rec))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.CreatePreference(ctx, samplePreference())
		require.NoError(t, err)
	}

	ids, err := rec.FindByTag(ctx, PreferencesPath)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	req, err := rec.GetRequest(ctx, ids[1])
	require.NoError(t, err)
	assert.Contains(t, string(req), `"unit_price":42000`)

	resp, err := rec.GetResponse(ctx, ids[1])
	require.NoError(t, err)
	assert.Contains(t, string(resp), "pref-1")

	_, err = rec.GetRequest(ctx, "unknown")
	assert.ErrorIs(t, err, ErrExchangeNotFound)
}
