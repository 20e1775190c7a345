package feed

import (
	"context"
	"log/slog"

	"mini-social/domain/post"
)

// Dispatcher starts the fan-out of a stored post. It never reports failure
// to the caller: the post already exists, and feeds are best effort.
type Dispatcher interface {
	Dispatch(ctx context.Context, p post.Post, postId string)
}

// InlineDispatcher runs the fan-out on the caller's goroutine and only
// logs what went wrong.
type InlineDispatcher struct {
	Engine *Engine
	Logger *slog.Logger
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, p post.Post, postId string) {
	if err := d.Engine.FanOut(ctx, p, postId); err != nil {
		LogFailure(d.Logger, err, p, postId)
	}
}

func LogFailure(logger *slog.Logger, err error, p post.Post, postId string) {
	logger.Error("An error occurred while updating feeds",
		slog.String("post_id", postId),
		slog.String("author_id", p.UserId),
		slog.String("content", p.Content),
		slog.Time("timestamp", p.Timestamp),
		slog.Any("error", err))
}
