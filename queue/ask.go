package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/jonwraymond/offlinekit/resilience"
)

// Errors produced by AskClient.
var (
	ErrUnreachable = errors.New("queue: remote unreachable")
	ErrRejected    = errors.New("queue: remote rejected request")
	ErrBadReply    = errors.New("queue: malformed reply")
)

// maxReplyBytes caps how much of a reply is read.
const maxReplyBytes = 1 << 20

// StatusError reports a non-2xx reply. It matches ErrRejected.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("queue: remote returned status %d", e.Code)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrRejected
}

// Offline reports whether err means the remote could not be reached at all,
// as opposed to it answering with a failure.
func Offline(err error) bool {
	return errors.Is(err, ErrUnreachable) ||
		errors.Is(err, resilience.ErrTimeout) ||
		errors.Is(err, resilience.ErrCircuitOpen)
}

// Retryable reports whether another attempt could succeed: the remote was
// unreachable or answered with a server error.
func Retryable(err error) bool {
	if Offline(err) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Code >= http.StatusInternalServerError
}

// AskClient posts {"question": ...} payloads to the ask endpoint and returns
// the "answer" field of the reply.
type AskClient struct {
	endpoint string
	client   *http.Client
	exec     *resilience.Executor
}

// AskOption configures an AskClient.
type AskOption func(*AskClient)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) AskOption {
	return func(a *AskClient) { a.client = c }
}

// WithExecutor runs every call through exec.
func WithExecutor(exec *resilience.Executor) AskOption {
	return func(a *AskClient) { a.exec = exec }
}

// NewAskClient returns a client for endpoint, which must be an absolute URL.
func NewAskClient(endpoint string, opts ...AskOption) (*AskClient, error) {
	u, err := url.Parse(endpoint)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("queue: invalid ask endpoint %q", endpoint)
	}
	c := &AskClient{
		endpoint: u.String(),
		client:   http.DefaultClient,
		exec:     resilience.NewExecutor(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Replay implements Replayer.
func (c *AskClient) Replay(ctx context.Context, item Item) (string, error) {
	var answer string
	err := c.exec.Execute(ctx, func(ctx context.Context) error {
		var err error
		answer, err = c.post(ctx, item)
		return err
	})
	return answer, err
}

func (c *AskClient) post(ctx context.Context, item Item) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(item.Payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if item.ID != "" {
		req.Header.Set("Idempotency-Key", item.ID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read reply: %w", ErrUnreachable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Code: resp.StatusCode}
	}

	var reply struct {
		Answer *string `json:"answer"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return "", fmt.Errorf("%w: %w", ErrBadReply, err)
	}
	if reply.Answer == nil {
		return "", fmt.Errorf("%w: missing answer", ErrBadReply)
	}
	return *reply.Answer, nil
}

var _ Replayer = (*AskClient)(nil)
