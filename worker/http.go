package worker

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jonwraymond/offlinekit/observe"
	"github.com/jonwraymond/offlinekit/queue"
)

// AskPath is where AskHandler is conventionally mounted.
const AskPath = "/_worker/ask"

const maxAskBody = 1 << 20

type askReply struct {
	Answer string `json:"answer,omitempty"`
	Queued string `json:"queued,omitempty"`
}

// AskHandler submits a question through the offline queue. A reachable API
// answers 200 with {"answer"}; an unreachable one queues the question and
// answers 202 with {"queued": id}.
func (w *Worker) AskHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.Header().Set("Allow", http.MethodPost)
			http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxAskBody))
		if err != nil {
			http.Error(rw, "read body", http.StatusBadRequest)
			return
		}

		ctx := r.Context()
		answer, queued, err := w.queue.Submit(ctx, body)
		switch {
		case errors.Is(err, queue.ErrInvalidPayload):
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		case err != nil:
			w.logger.Warn(ctx, "ask failed", observe.Err(err))
			http.Error(rw, "ask failed", http.StatusBadGateway)
			return
		}

		reply, status := askReply{Answer: answer}, http.StatusOK
		if queued != nil {
			reply, status = askReply{Queued: queued.ID}, http.StatusAccepted
		}
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(status)
		_ = json.NewEncoder(rw).Encode(reply)
	})
}
