// Package service exposes the callable operations of the social network.
// Callers pass the authenticated user id, or "" when the call is
// anonymous.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"mini-social/domain/packet"
	"mini-social/domain/post"
	"mini-social/domain/profile"
	"mini-social/feed"
	"mini-social/graph"
	"mini-social/identity"
	"mini-social/reader"
	"mini-social/storage"
)

var (
	ErrNotLoggedIn    = errors.New("not logged in")
	ErrWrongParameter = errors.New("wrong parameter")
)

type NewUser struct {
	Name     string `json:"name"`
	Desc     string `json:"desc"`
	Icon     string `json:"icon"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Service struct {
	identities identity.Provider
	profiles   *storage.ProfileRepository
	posts      *storage.PostRepository
	fanOut     feed.Dispatcher
	graph      *graph.Mutator
	reader     *reader.Aggregator
	logger     *slog.Logger
	timeout    time.Duration
	now        func() time.Time
}

type Options struct {
	Identities identity.Provider
	Profiles   *storage.ProfileRepository
	Posts      *storage.PostRepository
	FanOut     feed.Dispatcher
	Graph      *graph.Mutator
	Reader     *reader.Aggregator
	Logger     *slog.Logger
	Timeout    time.Duration
	Now        func() time.Time
}

func New(opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		identities: opts.Identities,
		profiles:   opts.Profiles,
		posts:      opts.Posts,
		fanOut:     opts.FanOut,
		graph:      opts.Graph,
		reader:     opts.Reader,
		logger:     opts.Logger,
		timeout:    opts.Timeout,
		now:        now,
	}
}

func (s *Service) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// CreateUser provisions an identity and then the profile document keyed
// by it.
func (s *Service) CreateUser(ctx context.Context, u NewUser) (*profile.Profile, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	if strings.TrimSpace(u.Name) == "" {
		return nil, ErrWrongParameter
	}
	userId, err := s.identities.CreateIdentity(ctx, identity.Credentials{
		Email:       u.Email,
		Password:    u.Password,
		DisplayName: u.Name,
		PhotoURL:    u.Icon,
	})
	if err != nil {
		return nil, err
	}
	p := profile.New(userId, u.Name, u.Desc, u.Icon)
	if err := s.profiles.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("user created", slog.String("user_id", userId))
	return &p, nil
}

// Login checks the credentials and returns the caller's user id.
func (s *Service) Login(ctx context.Context, email string, password string) (string, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	return s.identities.Authenticate(ctx, email, password)
}

func (s *Service) GetProfile(ctx context.Context, caller string, userId string) packet.DataPacket {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	return s.reader.GetProfile(ctx, caller, userId)
}

func (s *Service) GetFeed(ctx context.Context, caller string) packet.DataPacket {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	return s.reader.GetFeed(ctx, caller)
}

// AddPost stores the post and hands it to fan-out. Past the parameter
// checks it never fails: a store error is logged and the call still
// returns nil.
func (s *Service) AddPost(ctx context.Context, caller string, np post.NewPost) error {
	if caller == "" {
		return ErrNotLoggedIn
	}
	if strings.TrimSpace(np.Content) == "" && np.Image == "" {
		return ErrWrongParameter
	}
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	p := np.ToPost(caller, s.now())
	postId, err := s.posts.Add(ctx, p)
	if err != nil {
		s.logger.Error("An error occurred while creating this post",
			slog.String("author_id", caller),
			slog.String("content", np.Content),
			slog.Any("error", err))
		return nil
	}
	s.fanOut.Dispatch(ctx, p, postId)
	return nil
}

func (s *Service) AddFriendReq(ctx context.Context, caller string, userId string) error {
	if caller == "" {
		return ErrNotLoggedIn
	}
	if userId == "" {
		return ErrWrongParameter
	}
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	return s.graph.SendRequest(ctx, caller, userId)
}

func (s *Service) AcceptFriendReq(ctx context.Context, caller string, userId string) error {
	if caller == "" {
		return ErrNotLoggedIn
	}
	if userId == "" {
		return ErrWrongParameter
	}
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	return s.graph.AcceptRequest(ctx, caller, userId)
}
