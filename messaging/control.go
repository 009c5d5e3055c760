package messaging

import (
	"context"

	"github.com/jonwraymond/offlinekit/observe"
)

// MessageType names a control message.
type MessageType string

const (
	MessageSkipWaiting MessageType = "SKIP_WAITING"
	MessageGetVersion  MessageType = "GET_VERSION"
)

// ControlMessage is sent by the host to the worker.
type ControlMessage struct {
	Type MessageType `json:"type"`
}

// VersionReply answers GET_VERSION.
type VersionReply struct {
	Version string `json:"version"`
}

// ReplyPort carries a reply back to the sender of a control message.
type ReplyPort interface {
	Reply(ctx context.Context, v VersionReply) error
}

// ReplyFunc adapts a function to ReplyPort.
type ReplyFunc func(ctx context.Context, v VersionReply) error

func (f ReplyFunc) Reply(ctx context.Context, v VersionReply) error { return f(ctx, v) }

// HandleControl dispatches msg. Nil and unknown messages are ignored, as is
// GET_VERSION without a reply port.
func (m *Messenger) HandleControl(ctx context.Context, msg *ControlMessage, reply ReplyPort) error {
	if msg == nil {
		return nil
	}

	switch msg.Type {
	case MessageSkipWaiting:
		return m.promoter.SkipWaiting(ctx)
	case MessageGetVersion:
		if reply == nil {
			m.logger.Debug(ctx, "version requested without reply port")
			return nil
		}
		return reply.Reply(ctx, VersionReply{Version: m.version.Version()})
	default:
		m.logger.Debug(ctx, "ignoring control message", observe.F("type", string(msg.Type)))
		return nil
	}
}
