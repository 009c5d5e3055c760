package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jonwraymond/offlinekit/auth"
	"github.com/jonwraymond/offlinekit/observe"
	"github.com/jonwraymond/offlinekit/resilience"
)

// ControlPath is where ControlHandler is conventionally mounted.
const ControlPath = "/_worker/message"

const maxControlBody = 64 << 10

// HandlerOption configures ControlHandler.
type HandlerOption func(*handlerOptions)

type handlerOptions struct {
	authn   auth.Authenticator
	limiter *resilience.Limiter
}

// WithAuthenticator requires callers to hold auth.RoleControl.
func WithAuthenticator(a auth.Authenticator) HandlerOption {
	return func(o *handlerOptions) { o.authn = a }
}

// WithLimiter answers 429 once l is exhausted.
func WithLimiter(l *resilience.Limiter) HandlerOption {
	return func(o *handlerOptions) { o.limiter = l }
}

// ControlHandler serves control messages over HTTP. The request body is a
// JSON ControlMessage; a GET_VERSION reply is written as 200 with a JSON
// VersionReply and everything else that succeeds is 204.
func (m *Messenger) ControlHandler(opts ...HandlerOption) http.Handler {
	var o handlerOptions
	for _, opt := range opts {
		opt(&o)
	}

	var h http.Handler = http.HandlerFunc(m.serveControl)
	if o.authn != nil {
		h = auth.Require(o.authn, auth.RoleControl)(h)
	}
	if o.limiter != nil {
		next := h
		h = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !o.limiter.Allow() {
				http.Error(w, resilience.ErrRateLimited.Error(), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	return h
}

func (m *Messenger) serveControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var msg ControlMessage
	dec := json.NewDecoder(io.LimitReader(r.Body, maxControlBody))
	if err := dec.Decode(&msg); err != nil {
		http.Error(w, "invalid control message", http.StatusBadRequest)
		return
	}

	var (
		replied bool
		version VersionReply
	)
	port := ReplyFunc(func(_ context.Context, v VersionReply) error {
		replied, version = true, v
		return nil
	})

	ctx := r.Context()
	if err := m.HandleControl(ctx, &msg, port); err != nil {
		m.logger.Error(ctx, "control message failed", observe.F("type", string(msg.Type)), observe.Err(err))
		status := http.StatusInternalServerError
		if errors.Is(err, context.Canceled) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, "control message failed", status)
		return
	}

	if !replied {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(version)
}
