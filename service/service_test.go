package service

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"mini-social/domain/packet"
	"mini-social/domain/post"
	"mini-social/domain/profile"
	"mini-social/feed"
	"mini-social/graph"
	"mini-social/identity"
	"mini-social/reader"
	"mini-social/storage"
	"mini-social/storage/storagetest"
)

type env struct {
	svc      *Service
	faulty   *storagetest.FaultyStore
	profiles *storage.ProfileRepository
	logs     *bytes.Buffer
	clock    time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		faulty: &storagetest.FaultyStore{Store: storage.NewInMemoryStore()},
		logs:   &bytes.Buffer{},
		clock:  time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	}
	logger := slog.New(slog.NewJSONHandler(e.logs, nil))
	e.profiles = storage.NewProfileRepository(e.faulty)
	posts := storage.NewPostRepository(e.faulty)
	engine := feed.NewEngine(e.profiles, logger, 4)
	e.svc = New(Options{
		Identities: identity.NewStoreProvider(e.faulty, bcrypt.MinCost),
		Profiles:   e.profiles,
		Posts:      posts,
		FanOut:     &feed.InlineDispatcher{Engine: engine, Logger: logger},
		Graph:      graph.NewMutator(e.profiles, logger, true),
		Reader:     reader.NewAggregator(e.profiles, posts, logger, 4),
		Logger:     logger,
		Timeout:    time.Second,
		Now: func() time.Time {
			e.clock = e.clock.Add(time.Millisecond)
			return e.clock
		},
	})
	return e
}

func (e *env) register(t *testing.T, name string) string {
	t.Helper()
	p, err := e.svc.CreateUser(context.Background(), NewUser{
		Name:     name,
		Email:    name + "@example.com",
		Password: "password",
	})
	require.NoError(t, err)
	return p.UserId
}

func (e *env) befriend(t *testing.T, a string, b string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.svc.AddFriendReq(ctx, a, b))
	require.NoError(t, e.svc.AcceptFriendReq(ctx, b, a))
}

func (e *env) profile(t *testing.T, id string) *profile.Profile {
	t.Helper()
	p, err := e.profiles.Get(context.Background(), id)
	require.NoError(t, err)
	return p
}

func bundle(t *testing.T, dp packet.DataPacket) *packet.Bundle {
	t.Helper()
	b, ok := dp.Bundle()
	require.True(t, ok)
	return b
}

func TestCreateUser(t *testing.T) {
	e := newEnv(t)
	p, err := e.svc.CreateUser(context.Background(), NewUser{
		Name: "Ana", Desc: "hi", Icon: "ana.png", Email: "ana@example.com", Password: "password",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.UserId)
	assert.Empty(t, p.Posts)
	assert.Empty(t, p.Feed)
	assert.Empty(t, p.Friends)

	stored := e.profile(t, p.UserId)
	assert.Equal(t, "Ana", stored.Name)
	assert.Equal(t, "ana.png", stored.Icon)

	uid, err := e.svc.Login(context.Background(), "ana@example.com", "password")
	require.NoError(t, err)
	assert.Equal(t, p.UserId, uid)

	_, err = e.svc.CreateUser(context.Background(), NewUser{Name: "Ana2", Email: "ana@example.com", Password: "password"})
	assert.ErrorIs(t, err, identity.ErrEmailTaken)
	_, err = e.svc.CreateUser(context.Background(), NewUser{Email: "x@example.com", Password: "password"})
	assert.ErrorIs(t, err, ErrWrongParameter)
}

func TestPostReachesFriendsOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u1, u2, u3, u4 := e.register(t, "u1"), e.register(t, "u2"), e.register(t, "u3"), e.register(t, "u4")
	e.befriend(t, u1, u2)
	e.befriend(t, u3, u1)

	require.NoError(t, e.svc.AddPost(ctx, u1, post.NewPost{Content: "hello"}))

	posts := e.profile(t, u1).Posts
	require.Len(t, posts, 1)
	id := posts[0]
	assert.Equal(t, []string{id}, e.profile(t, u2).Feed)
	assert.Equal(t, []string{id}, e.profile(t, u3).Feed)
	assert.Empty(t, e.profile(t, u4).Feed)

	b := bundle(t, e.svc.GetFeed(ctx, u2))
	require.Contains(t, b.Posts, id)
	assert.Equal(t, "hello", b.Posts[id].Content)
	assert.Equal(t, u1, b.Posts[id].UserId)
	assert.Empty(t, b.Posts[id].Likes)
	assert.Contains(t, b.Users, u1)
}

func TestLikedPostStartsWithAuthorLike(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u1 := e.register(t, "u1")
	require.NoError(t, e.svc.AddPost(ctx, u1, post.NewPost{Content: "me", Liked: true, Ref: "p0", Image: "img.png"}))

	b := bundle(t, e.svc.GetProfile(ctx, u1, u1))
	require.Len(t, b.Posts, 1)
	for _, p := range b.Posts {
		assert.Equal(t, []string{u1}, p.Likes)
		assert.Equal(t, "p0", p.Ref)
		assert.Equal(t, "img.png", p.Image)
	}
}

func TestFriendRequestScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u1, u2 := e.register(t, "u1"), e.register(t, "u2")

	require.NoError(t, e.svc.AddFriendReq(ctx, u1, u2))
	assert.Equal(t, []string{u1}, e.profile(t, u2).FriendReq)

	require.NoError(t, e.svc.AcceptFriendReq(ctx, u2, u1))
	p2 := e.profile(t, u2)
	assert.Empty(t, p2.FriendReq)
	assert.Equal(t, []string{u1}, p2.Friends)
	assert.Equal(t, []string{u2}, e.profile(t, u1).Friends)

	b := bundle(t, e.svc.GetProfile(ctx, u1, u2))
	assert.Contains(t, b.Users, u1)
}

func TestAuthorizationErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	assert.ErrorIs(t, e.svc.AddPost(ctx, "", post.NewPost{Content: "x"}), ErrNotLoggedIn)
	assert.ErrorIs(t, e.svc.AddPost(ctx, "u1", post.NewPost{}), ErrWrongParameter)
	assert.ErrorIs(t, e.svc.AddFriendReq(ctx, "", "u2"), ErrNotLoggedIn)
	assert.ErrorIs(t, e.svc.AddFriendReq(ctx, "u1", ""), ErrWrongParameter)
	assert.ErrorIs(t, e.svc.AcceptFriendReq(ctx, "", "u2"), ErrNotLoggedIn)
	assert.ErrorIs(t, e.svc.AcceptFriendReq(ctx, "u1", ""), ErrWrongParameter)

	msg, failed := e.svc.GetProfile(ctx, "", "u1").Err()
	assert.True(t, failed)
	assert.Equal(t, reader.MsgNotLoggedIn, msg)
	msg, _ = e.svc.GetFeed(ctx, "").Err()
	assert.Equal(t, reader.MsgNotLoggedIn, msg)
}

func TestAddPostSwallowsFanOutFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u1, u2 := e.register(t, "u1"), e.register(t, "u2")
	e.befriend(t, u1, u2)
	e.faulty.Fault = storagetest.FailUpdatesOf(u2)

	require.NoError(t, e.svc.AddPost(ctx, u1, post.NewPost{Content: "lost"}))

	e.faulty.Fault = nil
	assert.Len(t, e.profile(t, u1).Posts, 1)
	assert.Empty(t, e.profile(t, u2).Feed)
	assert.Contains(t, e.logs.String(), "An error occurred while updating feeds")
}

func TestAddPostSwallowsStoreFailure(t *testing.T) {
	e := newEnv(t)
	u1 := e.register(t, "u1")
	e.faulty.Fault = storagetest.FailAll()

	assert.NoError(t, e.svc.AddPost(context.Background(), u1, post.NewPost{Content: "lost"}))
	assert.Contains(t, e.logs.String(), "An error occurred while creating this post")
}

func TestAcceptPartialFailureSurfaces(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u1, u2 := e.register(t, "u1"), e.register(t, "u2")
	require.NoError(t, e.svc.AddFriendReq(ctx, u1, u2))
	e.faulty.Fault = storagetest.FailUpdatesOf(u1)

	err := e.svc.AcceptFriendReq(ctx, u2, u1)
	var partial *graph.PartialGraphMutationError
	require.ErrorAs(t, err, &partial)
	assert.True(t, partial.RolledBack)
}

func TestPostIdsFollowCreationTime(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u1 := e.register(t, "u1")
	require.NoError(t, e.svc.AddPost(ctx, u1, post.NewPost{Content: "a"}))
	require.NoError(t, e.svc.AddPost(ctx, u1, post.NewPost{Content: "b"}))

	posts := e.profile(t, u1).Posts
	require.Len(t, posts, 2)
	assert.Less(t, posts[0], posts[1])
}

func TestDeadlineIsApplied(t *testing.T) {
	e := newEnv(t)
	e.svc.timeout = time.Nanosecond
	ctx, cancel := e.svc.withDeadline(context.Background())
	defer cancel()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}
