package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/RichardKnop/machinery/v1/backends/result"
	"github.com/RichardKnop/machinery/v1/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-social/domain/post"
	"mini-social/domain/profile"
	"mini-social/feed"
	"mini-social/storage"
	"mini-social/storage/storagetest"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []*tasks.Signature
	err  error
}

func (s *recordingSender) SendTaskWithContext(_ context.Context, sig *tasks.Signature) (*result.AsyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.sent = append(s.sent, sig)
	return nil, nil
}

type recordingDispatcher struct {
	postIds []string
}

func (d *recordingDispatcher) Dispatch(_ context.Context, _ post.Post, postId string) {
	d.postIds = append(d.postIds, postId)
}

type staticFriends struct {
	friends []string
	err     error
}

func (f staticFriends) Friends(context.Context, string) ([]string, error) {
	return f.friends, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherEnqueuesFanOut(t *testing.T) {
	sender := &recordingSender{}
	fallback := &recordingDispatcher{}
	d := &Dispatcher{
		Sender:     sender,
		Friends:    staticFriends{friends: []string{"u2", "u3"}},
		Fallback:   fallback,
		Logger:     discardLogger(),
		RetryCount: 5,
	}

	d.Dispatch(context.Background(), post.Post{UserId: "u1"}, "p1")

	require.Len(t, sender.sent, 1)
	sig := sender.sent[0]
	assert.Equal(t, FanOutTask, sig.Name)
	assert.Equal(t, 5, sig.RetryCount)
	require.Len(t, sig.Args, 3)
	assert.Equal(t, "p1", sig.Args[0].Value)
	assert.Equal(t, "u1", sig.Args[1].Value)
	assert.Equal(t, "[]string", sig.Args[2].Type)
	assert.Equal(t, []string{"u2", "u3"}, sig.Args[2].Value)
	assert.Empty(t, fallback.postIds)
}

func TestDispatcherFallsBackWhenFriendsUnavailable(t *testing.T) {
	sender := &recordingSender{}
	fallback := &recordingDispatcher{}
	d := &Dispatcher{
		Sender:   sender,
		Friends:  staticFriends{err: errors.New("store down")},
		Fallback: fallback,
		Logger:   discardLogger(),
	}

	d.Dispatch(context.Background(), post.Post{UserId: "u1"}, "p1")
	assert.Empty(t, sender.sent)
	assert.Equal(t, []string{"p1"}, fallback.postIds)
}

func TestDispatcherFallsBackWhenBrokerFails(t *testing.T) {
	sender := &recordingSender{err: errors.New("broker down")}
	fallback := &recordingDispatcher{}
	d := &Dispatcher{Sender: sender, Friends: staticFriends{}, Fallback: fallback, Logger: discardLogger()}

	d.Dispatch(context.Background(), post.Post{UserId: "u1"}, "p1")
	assert.Equal(t, []string{"p1"}, fallback.postIds)
}

type handlerFixture struct {
	faulty   *storagetest.FaultyStore
	profiles *storage.ProfileRepository
	posts    *storage.PostRepository
	handler  *Handler
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	ctx := context.Background()
	faulty := &storagetest.FaultyStore{Store: storage.NewInMemoryStore()}
	f := &handlerFixture{
		faulty:   faulty,
		profiles: storage.NewProfileRepository(faulty),
		posts:    storage.NewPostRepository(faulty),
	}
	u1 := profile.New("u1", "one", "", "")
	u1.Friends = []string{"u2"}
	require.NoError(t, f.profiles.Create(ctx, u1))
	require.NoError(t, f.profiles.Create(ctx, profile.New("u2", "two", "", "")))
	require.NoError(t, f.profiles.Create(ctx, profile.New("u3", "three", "", "")))
	logger := discardLogger()
	f.handler = &Handler{
		Posts:   f.posts,
		Engine:  feed.NewEngine(f.profiles, logger, 2),
		Logger:  logger,
		Timeout: time.Second,
	}
	return f
}

func TestHandlerFansOutStoredPost(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	id, err := f.posts.Add(ctx, post.NewPost{Content: "hi"}.ToPost("u1", time.Now()))
	require.NoError(t, err)

	require.NoError(t, f.handler.FanOut(ctx, id, "u1", []string{"u2"}))

	u1, err := f.profiles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, u1.Posts)
	u2, err := f.profiles.Get(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, u2.Feed)
}

func TestHandlerDropsMissingPost(t *testing.T) {
	f := newHandlerFixture(t)
	assert.NoError(t, f.handler.FanOut(context.Background(), "ghost", "u1", []string{"u2"}))
}

func TestHandlerReturnsErrorForRetry(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	id, err := f.posts.Add(ctx, post.NewPost{Content: "hi"}.ToPost("u1", time.Now()))
	require.NoError(t, err)
	f.faulty.Fault = storagetest.FailUpdatesOf("u2")

	err = f.handler.FanOut(ctx, id, "u1", []string{"u2"})
	var fanOutErr *feed.FanOutError
	assert.ErrorAs(t, err, &fanOutErr)

	f.faulty.Fault = nil
	require.NoError(t, f.handler.FanOut(ctx, id, "u1", []string{"u2"}))
	u2, err := f.profiles.Get(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, u2.Feed)
}

func TestHandlerStoreUnavailable(t *testing.T) {
	f := newHandlerFixture(t)
	f.faulty.Fault = storagetest.FailAll()
	assert.ErrorIs(t, f.handler.FanOut(context.Background(), "p1", "u1", []string{"u2"}), storagetest.ErrInjected)
}

func TestQueuedFanOutSkipsFriendsAddedAfterPosting(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	sender := &recordingSender{}
	d := &Dispatcher{
		Sender:   sender,
		Friends:  f.handler.Engine,
		Fallback: &recordingDispatcher{},
		Logger:   discardLogger(),
	}
	p := post.NewPost{Content: "hi"}.ToPost("u1", time.Now())
	id, err := f.posts.Add(ctx, p)
	require.NoError(t, err)
	d.Dispatch(ctx, p, id)
	require.Len(t, sender.sent, 1)

	require.NoError(t, f.profiles.AddFriend(ctx, "u1", "u3"))
	require.NoError(t, f.profiles.AddFriend(ctx, "u3", "u1"))

	args := sender.sent[0].Args
	friends, ok := args[2].Value.([]string)
	require.True(t, ok)
	require.NoError(t, f.handler.FanOut(ctx, args[0].Value.(string), args[1].Value.(string), friends))

	u2, err := f.profiles.Get(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, u2.Feed)
	u3, err := f.profiles.Get(ctx, "u3")
	require.NoError(t, err)
	assert.Empty(t, u3.Feed)
}
