// Package feed propagates new posts to the author's post list and to every
// friend's feed at write time.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"mini-social/domain/post"
	"mini-social/domain/profile"
)

const DefaultConcurrency = 8

type ProfileStore interface {
	Get(ctx context.Context, userId string) (*profile.Profile, error)
	AddPost(ctx context.Context, userId string, postId string) error
	AddToFeed(ctx context.Context, userId string, postId string) error
}

// FanOutError reports a fan-out that did not reach every list it should
// have. Some updates may still have been applied.
type FanOutError struct {
	PostId   string
	AuthorId string
	Err      error
}

func (e *FanOutError) Error() string {
	return fmt.Sprintf("fan-out of post %s by %s: %v", e.PostId, e.AuthorId, e.Err)
}

func (e *FanOutError) Unwrap() error {
	return e.Err
}

type Engine struct {
	profiles    ProfileStore
	logger      *slog.Logger
	concurrency int
}

func NewEngine(profiles ProfileStore, logger *slog.Logger, concurrency int) *Engine {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Engine{profiles: profiles, logger: logger, concurrency: concurrency}
}

// FanOut adds postId to the author's posts and to the feed of every user
// who is the author's friend right now. Friends added later never receive
// it. Every step is a union, so running FanOut again for the same post is
// harmless.
func (e *Engine) FanOut(ctx context.Context, p post.Post, postId string) error {
	return e.fanOut(ctx, p, postId, func() ([]string, error) {
		return e.Friends(ctx, p.UserId)
	})
}

// FanOutTo is FanOut with the recipients fixed by the caller, normally the
// author's friends when the post was created.
func (e *Engine) FanOutTo(ctx context.Context, p post.Post, postId string, friends []string) error {
	return e.fanOut(ctx, p, postId, func() ([]string, error) {
		return friends, nil
	})
}

// Friends returns the author's current friend set.
func (e *Engine) Friends(ctx context.Context, authorId string) ([]string, error) {
	author, err := e.profiles.Get(ctx, authorId)
	if err != nil {
		return nil, fmt.Errorf("load author: %w", err)
	}
	return author.Friends, nil
}

func (e *Engine) fanOut(ctx context.Context, p post.Post, postId string, recipients func() ([]string, error)) error {
	if p.UserId == "" {
		return &FanOutError{PostId: postId, Err: errors.New("post has no author")}
	}

	ownErr := make(chan error, 1)
	go func() {
		if err := e.profiles.AddPost(ctx, p.UserId, postId); err != nil {
			ownErr <- fmt.Errorf("author post list: %w", err)
			return
		}
		ownErr <- nil
	}()

	var feedErr error
	friends, err := recipients()
	if err != nil {
		feedErr = err
	} else {
		feedErr = e.deliver(ctx, friends, postId)
	}
	if err := errors.Join(<-ownErr, feedErr); err != nil {
		return &FanOutError{PostId: postId, AuthorId: p.UserId, Err: err}
	}
	return nil
}

func (e *Engine) deliver(ctx context.Context, friends []string, postId string) error {
	if len(friends) == 0 {
		return nil
	}

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for _, friend := range friends {
		friend := friend
		g.Go(func() error {
			if err := e.profiles.AddToFeed(ctx, friend, postId); err != nil {
				e.logger.Warn("feed update failed",
					slog.String("post_id", postId),
					slog.String("friend_id", friend),
					slog.Any("error", err))
				return fmt.Errorf("feed of %s: %w", friend, err)
			}
			return nil
		})
	}
	return g.Wait()
}
