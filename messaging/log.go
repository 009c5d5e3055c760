package messaging

import (
	"context"

	"github.com/jonwraymond/offlinekit/observe"
)

// LogHost is a Notifier and Windows for hosts without a display. It records
// every request in the log.
type LogHost struct {
	logger observe.Logger
}

// NewLogHost returns a LogHost writing to logger.
func NewLogHost(logger observe.Logger) *LogHost {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &LogHost{logger: logger}
}

func (h *LogHost) Show(ctx context.Context, n Notification) error {
	h.logger.Info(ctx, "notification shown",
		observe.F("title", n.Title),
		observe.F("body", n.Body),
		observe.F("arrived", n.Data.DateOfArrival),
	)
	return nil
}

func (h *LogHost) Close(ctx context.Context, n Notification) error {
	h.logger.Debug(ctx, "notification closed", observe.F("title", n.Title))
	return nil
}

func (h *LogHost) OpenWindow(ctx context.Context, url string) error {
	h.logger.Info(ctx, "open window", observe.F("url", url))
	return nil
}

var (
	_ Notifier = (*LogHost)(nil)
	_ Windows  = (*LogHost)(nil)
)
