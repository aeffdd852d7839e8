package collector

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestStopFetcher_Success(t *testing.T) {
	is := is.New(t)

	var requestedIds []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedIds = append(requestedIds, r.FormValue("id"))
		_, _ = w.Write([]byte(`{"uid":"stop-1234","vehicles":[{"garageNo":"P93123"}]}`))
	}))
	defer server.Close()

	fetcher := makeStopFetcher(server.URL, time.Second, 2, "test-agent")
	outcome := fetcher.fetchStop("1234")

	is.Equal(outcome.Error, "")
	is.Equal(outcome.Attempts, 1)
	is.Equal(len(requestedIds), 1)
	is.Equal(requestedIds[0], "1234")

	payload, ok := outcome.Payload.(map[string]interface{})
	is.True(ok)
	is.Equal(payload["uid"], "stop-1234")
}

func TestStopFetcher_RetriesThenSucceeds(t *testing.T) {
	is := is.New(t)

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"vehicles":[]}`))
	}))
	defer server.Close()

	fetcher := makeStopFetcher(server.URL, time.Second, 2, "test-agent")
	outcome := fetcher.fetchStop("1234")

	is.Equal(outcome.Error, "")
	is.Equal(outcome.Attempts, 3)
}

func TestStopFetcher_ExhaustsRetries(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	fetcher := makeStopFetcher(server.URL, time.Second, 2, "test-agent")
	outcome := fetcher.fetchStop("1234")

	is.Equal(outcome.Error, "http_error:503")
	is.Equal(outcome.Attempts, 3)
	is.True(outcome.Payload == nil)
	is.True(outcome.HttpStatus != nil)
	is.Equal(*outcome.HttpStatus, http.StatusServiceUnavailable)
}

func TestStopFetcher_MalformedBody(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	fetcher := makeStopFetcher(server.URL, time.Second, 0, "test-agent")
	outcome := fetcher.fetchStop("1234")

	is.True(strings.HasPrefix(outcome.Error, "error:"))
	is.Equal(outcome.Attempts, 1)
}

func TestStopFetcher_SetsHeaders(t *testing.T) {
	is := is.New(t)

	var gotAgent, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	fetcher := makeStopFetcher(server.URL, time.Second, 0, "stopcast/1.0")
	fetcher.fetchStop("1234")

	is.Equal(gotAgent, "stopcast/1.0")
	is.Equal(gotAccept, "application/json")
}

func TestClassifyFetchError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect string
	}{
		{
			name:   "http status error",
			err:    httpStatusError{code: 404},
			expect: "http_error:404",
		},
		{
			name:   "wrapped http status error",
			err:    fmt.Errorf("request failed: %w", httpStatusError{code: 500}),
			expect: "http_error:500",
		},
		{
			name:   "url error",
			err:    &url.Error{Op: "Get", URL: "http://localhost", Err: errors.New("connection refused")},
			expect: "url_error:connection refused",
		},
		{
			name:   "anything else",
			err:    errors.New("unexpected end of JSON input"),
			expect: "error:unexpected end of JSON input",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := classifyFetchError(tt.err)
			if result != tt.expect {
				t.Errorf("expected %q, got %q", tt.expect, result)
			}
		})
	}
}
