package collector

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// retryBaseDelay is the base for the linear backoff between fetch attempts
const retryBaseDelay = 250 * time.Millisecond

// FetchOutcome is the terminal result of querying one stop, success or failure.
// Exactly one of Payload and Error is set. The fetcher never returns a Go error,
// every failure mode is classified into the Error field.
type FetchOutcome struct {
	StopCode   string
	ObservedAt time.Time
	// Payload is the decoded json body on success, nil on failure
	Payload interface{}
	// Error is the classified error string, empty on success
	Error      string
	HttpStatus *int
	// DurationMs is the end to end duration including all retries
	DurationMs int64
	Attempts   int
}

// stopFetcher issues realtime arrival requests for single stops with bounded retries
type stopFetcher struct {
	client    *http.Client
	baseUrl   string
	userAgent string
	retries   int
}

func makeStopFetcher(baseUrl string, timeout time.Duration, retries int, userAgent string) *stopFetcher {
	return &stopFetcher{
		client:    &http.Client{Timeout: timeout},
		baseUrl:   baseUrl,
		userAgent: userAgent,
		retries:   retries,
	}
}

// fetchStop queries one stop, retrying up to the configured count with a delay
// of retryBaseDelay * attempt between attempts. Backoff is only applied between
// attempts, never after the final one.
func (f *stopFetcher) fetchStop(stopCode string) FetchOutcome {
	requestUrl := f.baseUrl + "?id=" + url.QueryEscape(stopCode)
	start := time.Now()

	var lastError string
	var lastStatus *int
	attempts := 0
	for attempt := 1; attempt <= f.retries+1; attempt++ {
		attempts = attempt
		payload, status, err := f.attempt(requestUrl)
		if status != nil {
			lastStatus = status
		}
		if err == nil {
			return FetchOutcome{
				StopCode:   stopCode,
				ObservedAt: time.Now().UTC(),
				Payload:    payload,
				HttpStatus: lastStatus,
				DurationMs: time.Since(start).Milliseconds(),
				Attempts:   attempt,
			}
		}
		lastError = classifyFetchError(err)
		if attempt <= f.retries {
			time.Sleep(retryBaseDelay * time.Duration(attempt))
		}
	}

	if lastError == "" {
		lastError = "unknown_error"
	}
	return FetchOutcome{
		StopCode:   stopCode,
		ObservedAt: time.Now().UTC(),
		Error:      lastError,
		HttpStatus: lastStatus,
		DurationMs: time.Since(start).Milliseconds(),
		Attempts:   attempts,
	}
}

// attempt makes a single request, returning the decoded payload and the http
// status when one was received
func (f *stopFetcher) attempt(requestUrl string) (interface{}, *int, error) {
	request, err := http.NewRequest(http.MethodGet, requestUrl, nil)
	if err != nil {
		return nil, nil, err
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", f.userAgent)

	response, err := f.client.Do(request)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = response.Body.Close()
	}()

	status := response.StatusCode
	if status < 200 || status >= 300 {
		// drain the body so the connection can be reused
		_, _ = io.Copy(io.Discard, response.Body)
		return nil, &status, httpStatusError{code: status}
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, &status, err
	}
	var payload interface{}
	if err = json.Unmarshal(body, &payload); err != nil {
		return nil, &status, err
	}
	return payload, &status, nil
}

// httpStatusError marks a response that arrived with a non 2xx status
type httpStatusError struct {
	code int
}

func (e httpStatusError) Error() string {
	return fmt.Sprintf("http status %d", e.code)
}

// classifyFetchError tags errors by class: http_error for non 2xx responses,
// url_error for transport failures, error for everything else
func classifyFetchError(err error) string {
	var statusErr httpStatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("http_error:%d", statusErr.code)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return "url_error:" + urlErr.Err.Error()
	}
	return "error:" + err.Error()
}
