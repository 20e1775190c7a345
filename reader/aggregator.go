// Package reader turns the id lists stored on a profile back into full
// posts and users for the profile and feed views.
package reader

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"mini-social/domain/packet"
	"mini-social/domain/post"
	"mini-social/domain/profile"
	"mini-social/storage"
)

const DefaultConcurrency = 16

const (
	MsgNotLoggedIn         = "This user is not logged in"
	MsgWrongParameter      = "Wrong parameter: userId"
	MsgProfileNotFound     = "This profile doesn't exist"
	MsgCurrentUserNotFound = "The current user doesn't exist"
	MsgUnavailable         = "This profile could not be loaded"
)

type ProfileStore interface {
	Get(ctx context.Context, userId string) (*profile.Profile, error)
	GetUser(ctx context.Context, userId string) (*profile.User, error)
}

type PostStore interface {
	Get(ctx context.Context, postId string) (*post.Post, error)
}

type Aggregator struct {
	profiles    ProfileStore
	posts       PostStore
	logger      *slog.Logger
	concurrency int
}

func NewAggregator(profiles ProfileStore, posts PostStore, logger *slog.Logger, concurrency int) *Aggregator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Aggregator{profiles: profiles, posts: posts, logger: logger, concurrency: concurrency}
}

// GetProfile returns userId's profile with its friends and posts resolved.
// A missing userId is reported before a missing caller. Ids whose
// documents cannot be loaded are left out of the bundle.
func (a *Aggregator) GetProfile(ctx context.Context, caller string, userId string) packet.DataPacket {
	if userId == "" {
		return packet.Failure(MsgWrongParameter)
	}
	if caller == "" {
		return packet.Failure(MsgNotLoggedIn)
	}
	p, failure := a.load(ctx, userId, MsgProfileNotFound)
	if p == nil {
		return failure
	}

	r := a.newResolution(p)
	var g sync.WaitGroup
	g.Add(2)
	go func() {
		defer g.Done()
		r.users(ctx, p.Friends)
	}()
	go func() {
		defer g.Done()
		r.posts(ctx, p.Posts)
	}()
	g.Wait()
	return packet.Success(r.bundle)
}

// GetFeed returns the caller's feed posts together with their authors.
func (a *Aggregator) GetFeed(ctx context.Context, caller string) packet.DataPacket {
	if caller == "" {
		return packet.Failure(MsgNotLoggedIn)
	}
	p, failure := a.load(ctx, caller, MsgCurrentUserNotFound)
	if p == nil {
		return failure
	}

	r := a.newResolution(nil)
	r.posts(ctx, p.Feed)
	r.users(ctx, r.authors())
	return packet.Success(r.bundle)
}

func (a *Aggregator) load(ctx context.Context, userId string, notFound string) (*profile.Profile, packet.DataPacket) {
	p, err := a.profiles.Get(ctx, userId)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, packet.Failure(notFound)
	}
	if err != nil {
		a.logger.Error("profile lookup failed", slog.String("user_id", userId), slog.Any("error", err))
		return nil, packet.Failure(MsgUnavailable)
	}
	return p, packet.DataPacket{}
}

type resolution struct {
	a      *Aggregator
	mu     sync.Mutex
	bundle *packet.Bundle
}

func (a *Aggregator) newResolution(p *profile.Profile) *resolution {
	b := packet.NewBundle()
	b.Profile = p
	return &resolution{a: a, bundle: b}
}

func (r *resolution) users(ctx context.Context, ids []string) {
	r.each(r.missing(ids, func(id string) bool {
		_, ok := r.bundle.Users[id]
		return ok
	}), "user", func(id string) error {
		u, err := r.a.profiles.GetUser(ctx, id)
		if err != nil {
			return err
		}
		r.mu.Lock()
		r.bundle.Users[id] = *u
		r.mu.Unlock()
		return nil
	})
}

func (r *resolution) posts(ctx context.Context, ids []string) {
	r.each(r.missing(ids, func(id string) bool {
		_, ok := r.bundle.Posts[id]
		return ok
	}), "post", func(id string) error {
		p, err := r.a.posts.Get(ctx, id)
		if err != nil {
			return err
		}
		r.mu.Lock()
		r.bundle.Posts[id] = *p
		r.mu.Unlock()
		return nil
	})
}

// authors lists the distinct authors of the posts resolved so far.
func (r *resolution) authors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.bundle.Posts))
	for _, p := range r.bundle.Posts {
		if p.UserId != "" {
			ids = append(ids, p.UserId)
		}
	}
	return ids
}

// missing drops duplicates and ids the bundle already holds.
func (r *resolution) missing(ids []string, present func(string) bool) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool, len(ids))
	res := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] || present(id) {
			continue
		}
		seen[id] = true
		res = append(res, id)
	}
	return res
}

// each runs fetch for every id in parallel. A failed fetch is logged and
// skipped; it never stops the others.
func (r *resolution) each(ids []string, kind string, fetch func(id string) error) {
	if len(ids) == 0 {
		return
	}
	var g errgroup.Group
	g.SetLimit(r.a.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			err := fetch(id)
			switch {
			case err == nil:
			case errors.Is(err, storage.ErrNotFound):
				r.a.logger.Warn("dangling reference skipped", slog.String("kind", kind), slog.String("id", id))
			default:
				r.a.logger.Warn("reference lookup failed", slog.String("kind", kind), slog.String("id", id), slog.Any("error", err))
			}
			return nil
		})
	}
	_ = g.Wait()
}
