package messaging

import (
	"cmp"
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/offlinekit/observe"
)

// Defaults mirroring the application's notification presentation.
const (
	DefaultAppName    = "AgriAssist"
	DefaultBody       = "New farming advice available!"
	DefaultIcon       = "/public/favicon.ico"
	DefaultExploreURL = "/pages/homepage_ai_query_interface.html"
	DefaultRootURL    = "/"
)

// Sentinel errors.
var (
	ErrMissingNotifier = errors.New("messaging: notifier is nil")
	ErrMissingWindows  = errors.New("messaging: windows is nil")
	ErrMissingPromoter = errors.New("messaging: promoter is nil")
	ErrMissingVersion  = errors.New("messaging: versioner is nil")
)

// Notifier displays and dismisses notifications.
type Notifier interface {
	Show(ctx context.Context, n Notification) error
	Close(ctx context.Context, n Notification) error
}

// Windows opens host views.
type Windows interface {
	OpenWindow(ctx context.Context, url string) error
}

// Promoter activates a waiting worker.
type Promoter interface {
	SkipWaiting(ctx context.Context) error
}

// Versioner reports the running worker version.
type Versioner interface {
	Version() string
}

// Config configures a Messenger.
type Config struct {
	Notifier Notifier
	Windows  Windows
	Promoter Promoter
	Version  Versioner

	AppName    string
	Icon       string
	Badge      string
	ExploreURL string

	Logger observe.Logger
	Now    func() time.Time
}

// Messenger implements push, notification click and control handling.
type Messenger struct {
	notifier Notifier
	windows  Windows
	promoter Promoter
	version  Versioner

	appName    string
	icon       string
	badge      string
	exploreURL string

	logger observe.Logger
	now    func() time.Time
}

// New validates cfg and returns a Messenger.
func New(cfg Config) (*Messenger, error) {
	switch {
	case cfg.Notifier == nil:
		return nil, ErrMissingNotifier
	case cfg.Windows == nil:
		return nil, ErrMissingWindows
	case cfg.Promoter == nil:
		return nil, ErrMissingPromoter
	case cfg.Version == nil:
		return nil, ErrMissingVersion
	}

	m := &Messenger{
		notifier:   cfg.Notifier,
		windows:    cfg.Windows,
		promoter:   cfg.Promoter,
		version:    cfg.Version,
		appName:    cmp.Or(cfg.AppName, DefaultAppName),
		icon:       cmp.Or(cfg.Icon, DefaultIcon),
		badge:      cmp.Or(cfg.Badge, DefaultIcon),
		exploreURL: cmp.Or(cfg.ExploreURL, DefaultExploreURL),
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
	if m.logger == nil {
		m.logger = observe.NopLogger()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}
