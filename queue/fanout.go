package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/RichardKnop/machinery/v1/backends/result"
	"github.com/RichardKnop/machinery/v1/tasks"

	"mini-social/domain/post"
	"mini-social/feed"
	"mini-social/storage"
)

const FanOutTask = "fanout"

type TaskSender interface {
	SendTaskWithContext(ctx context.Context, signature *tasks.Signature) (*result.AsyncResult, error)
}

type PostStore interface {
	Get(ctx context.Context, postId string) (*post.Post, error)
}

// FriendLister reports an author's current friends.
type FriendLister interface {
	Friends(ctx context.Context, authorId string) ([]string, error)
}

// FanOutSignature builds the task for one post. friends is the recipient
// set fixed at post creation; retries deliver to it and nobody else.
func FanOutSignature(postId string, authorId string, friends []string, retries int) *tasks.Signature {
	if friends == nil {
		friends = []string{}
	}
	return &tasks.Signature{
		Name: FanOutTask,
		Args: []tasks.Arg{
			{
				Name:  "postId",
				Type:  "string",
				Value: postId,
			},
			{
				Name:  "authorId",
				Type:  "string",
				Value: authorId,
			},
			{
				Name:  "friends",
				Type:  "[]string",
				Value: friends,
			},
		},
		RetryCount: retries,
	}
}

// Dispatcher snapshots the author's friends and enqueues the fan-out. If
// the snapshot or the enqueue fails the fan-out runs through Fallback
// instead.
type Dispatcher struct {
	Sender     TaskSender
	Friends    FriendLister
	Fallback   feed.Dispatcher
	Logger     *slog.Logger
	RetryCount int
}

func (d *Dispatcher) Dispatch(ctx context.Context, p post.Post, postId string) {
	friends, err := d.Friends.Friends(ctx, p.UserId)
	if err == nil {
		_, err = d.Sender.SendTaskWithContext(ctx, FanOutSignature(postId, p.UserId, friends, d.RetryCount))
	}
	if err == nil {
		return
	}
	d.Logger.Warn("fan-out enqueue failed, running inline",
		slog.String("post_id", postId),
		slog.Any("error", err))
	d.Fallback.Dispatch(ctx, p, postId)
}

// Handler is the worker side of the fan-out task.
type Handler struct {
	Posts   PostStore
	Engine  *feed.Engine
	Logger  *slog.Logger
	Timeout time.Duration
}

// FanOut loads the post and delivers it to friends. Returning an error
// makes machinery retry the task; a post that no longer exists is not
// retried.
func (h *Handler) FanOut(ctx context.Context, postId string, authorId string, friends []string) error {
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}
	p, err := h.Posts.Get(ctx, postId)
	if errors.Is(err, storage.ErrNotFound) {
		h.Logger.Warn("fan-out of missing post dropped",
			slog.String("post_id", postId),
			slog.String("author_id", authorId))
		return nil
	}
	if err != nil {
		return err
	}
	if p.UserId != authorId {
		h.Logger.Warn("fan-out author mismatch, using stored author",
			slog.String("post_id", postId),
			slog.String("task_author_id", authorId),
			slog.String("author_id", p.UserId))
	}
	if err := h.Engine.FanOutTo(ctx, *p, postId, friends); err != nil {
		feed.LogFailure(h.Logger, err, *p, postId)
		return err
	}
	return nil
}
