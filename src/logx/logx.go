package logx

import (
	"context"

	"pkt.systems/pslog"
)

type contextKey int

const tabKey contextKey = iota

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithTab annotates the context logger with the tab id unless the context already carries it.
func WithTab(ctx context.Context, tabID string) pslog.Logger {
	log := pslog.Ctx(ctx)
	if tabID != "" {
		if current, ok := ctx.Value(tabKey).(string); ok && current == tabID {
			return log
		}
		log = log.With("tab", tabID)
	}
	return log
}

// WithOperation annotates the logger with the studio operation name.
func WithOperation(log pslog.Logger, op string) pslog.Logger {
	if op != "" {
		log = log.With("op", op)
	}
	return log
}

// ContextWithTab stores the tab marker on the context for log de-duplication.
func ContextWithTab(ctx context.Context, tabID string) context.Context {
	if ctx == nil || tabID == "" {
		return ctx
	}
	return context.WithValue(ctx, tabKey, tabID)
}

// ContextWithTabLogger attaches the logger, already annotated with the tab, and the tab marker.
func ContextWithTabLogger(ctx context.Context, log pslog.Logger, tabID string) context.Context {
	if tabID != "" {
		log = log.With("tab", tabID)
	}
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithTab(ctx, tabID)
}
