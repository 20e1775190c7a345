package storage

import (
	"context"
	"errors"
	"time"

	"mini-social/domain/post"
	"mini-social/utils"
)

const PostsCollection = "globalPosts"

const maxIdAttempts = 16

type PostRepository struct {
	store Store
}

func NewPostRepository(store Store) *PostRepository {
	return &PostRepository{store: store}
}

// Add stores p under an id derived from its timestamp. When that id is
// taken the next nanosecond is tried; the stored timestamp is left as is.
func (r *PostRepository) Add(ctx context.Context, p post.Post) (string, error) {
	ts := p.Timestamp
	for i := 0; i < maxIdAttempts; i++ {
		id := utils.GeneratePostId(ts)
		err := r.store.Create(ctx, PostsCollection, id, p)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrAlreadyExists) {
			return "", err
		}
		ts = ts.Add(time.Nanosecond)
	}
	return "", ErrIdExhausted
}

func (r *PostRepository) Get(ctx context.Context, postId string) (*post.Post, error) {
	var p post.Post
	if err := r.store.Get(ctx, PostsCollection, postId, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
