package logger

import (
	"context"
	"log/slog"
)

// ContextProvider レコードごとに追加する動的な属性を返す
type ContextProvider func() []slog.Attr

// ContextHandler 内部ハンドラをラップし、動的な属性を注入する
type ContextHandler struct {
	inner    slog.Handler
	provider ContextProvider
}

// NewContextHandler ContextHandlerを作成
func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{
		inner:    inner,
		provider: provider,
	}
}

// Enabled 内部ハンドラに委譲
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle 動的な属性を付与して内部ハンドラに委譲
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider != nil {
		if attrs := h.provider(); len(attrs) > 0 {
			r = r.Clone()
			r.AddAttrs(attrs...)
		}
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs 属性を追加したハンドラを返す
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{
		inner:    h.inner.WithAttrs(attrs),
		provider: h.provider,
	}
}

// WithGroup グループを追加したハンドラを返す
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{
		inner:    h.inner.WithGroup(name),
		provider: h.provider,
	}
}
