package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/shimmeringbee/logwrap"
	"io"
	"net"
	"net/http"
	"time"
)

// Policy controls how Executor re-attempts a request. WaitTime is the fixed
// delay between attempts; there is no backoff or jitter, the link is local
// and low latency.
type Policy struct {
	WaitTime       time.Duration
	MaxAttempts    int
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// NoStatus is the recorded status when no attempt ever produced a response.
const NoStatus = -1

type transportError string

func (e transportError) Error() string {
	return string(e)
}

// ErrUnknownEndpoint is a precondition violation: the caller asked for a URL
// outside the session's known endpoint set. Never retried.
const ErrUnknownEndpoint = transportError("endpoint is not a member of the known endpoint set")

// ExhaustedError is returned when every attempt completed but none produced
// a 200.
type ExhaustedError struct {
	URL        string
	Attempts   int
	LastStatus int
}

func (e ExhaustedError) Error() string {
	if e.LastStatus == NoStatus {
		return fmt.Sprintf("retries exhausted for %s after %d attempts: no status code observed", e.URL, e.Attempts)
	}

	return fmt.Sprintf("retries exhausted for %s after %d attempts: last status %d", e.URL, e.Attempts, e.LastStatus)
}

// EndpointSet answers whether a URL is currently known. The camera session's
// endpoint catalog satisfies this.
type EndpointSet interface {
	Contains(url string) bool
}

type allEndpoints struct{}

func (allEndpoints) Contains(string) bool { return true }

// AllEndpoints admits any URL; used during discovery before a catalog exists.
var AllEndpoints EndpointSet = allEndpoints{}

// Executor performs HTTP calls under a retry policy. A response with status
// exactly 200 is the only success condition; transport failures and any
// other status are retried up to Policy.MaxAttempts.
type Executor struct {
	Policy    Policy
	Endpoints EndpointSet
	Logger    logwrap.Logger

	client  *http.Client
	sleepFn func(time.Duration)
}

// NewExecutor builds an Executor with an http.Client honouring the policy's
// connect and read timeouts.
func NewExecutor(policy Policy, endpoints EndpointSet, l logwrap.Logger) *Executor {
	dialer := &net.Dialer{Timeout: policy.ConnectTimeout}

	return &Executor{
		Policy:    policy,
		Endpoints: endpoints,
		Logger:    l,

		client: &http.Client{
			Timeout: policy.ConnectTimeout + policy.ReadTimeout,
			Transport: &http.Transport{
				DialContext: dialer.DialContext,
			},
		},
		sleepFn: time.Sleep,
	}
}

// Response is the subset of an HTTP response the callers need, with the body
// already drained so the connection can be reused.
type Response struct {
	StatusCode int
	Body       []byte
}

// JSON unmarshals the response body into v.
func (r Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Do executes method against url, marshalling payload as a JSON body when it
// is non-nil. It returns only on a 200 response or once the policy is
// exhausted.
func (e *Executor) Do(ctx context.Context, method string, url string, payload any) (Response, error) {
	if !e.Endpoints.Contains(url) {
		return Response{}, fmt.Errorf("%w: %s", ErrUnknownEndpoint, url)
	}

	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return Response{}, fmt.Errorf("failed to marshal request payload: %w", err)
		}
	}

	e.Logger.LogDebug(ctx, "Issuing request.", logwrap.Datum("method", method), logwrap.Datum("url", url))

	lastStatus := NoStatus

	for attempt := 0; attempt < e.Policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			e.sleepFn(e.Policy.WaitTime)
		}

		resp, err := e.attempt(ctx, method, url, body)
		if err != nil {
			if attempt < e.Policy.MaxAttempts-1 {
				e.Logger.LogWarn(ctx, "Request attempt failed, retrying.", logwrap.Datum("url", url), logwrap.Err(err))
				continue
			}

			e.Logger.LogError(ctx, "Request failed on final attempt.", logwrap.Datum("url", url), logwrap.Err(err))
			return Response{}, err
		}

		if resp.StatusCode == http.StatusOK {
			e.Logger.LogDebug(ctx, "Request succeeded.", logwrap.Datum("url", url), logwrap.Datum("attempt", attempt+1))
			return resp, nil
		}

		lastStatus = resp.StatusCode
		e.Logger.LogWarn(ctx, "Request returned non-200, retrying.", logwrap.Datum("url", url), logwrap.Datum("status", resp.StatusCode))
	}

	err := ExhaustedError{URL: url, Attempts: e.Policy.MaxAttempts, LastStatus: lastStatus}
	e.Logger.LogError(ctx, "Request retries exhausted.", logwrap.Datum("url", url), logwrap.Err(err))

	return Response{}, err
}

func (e *Executor) attempt(ctx context.Context, method string, url string, body []byte) (Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return Response{}, fmt.Errorf("failed to construct request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("transport failure: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response body: %w", err)
	}

	return Response{StatusCode: resp.StatusCode, Body: data}, nil
}
