package storage

import (
	"context"

	"mini-social/domain/profile"
)

const ProfilesCollection = "users"

const (
	FieldPosts     = "posts"
	FieldFeed      = "feed"
	FieldFriends   = "friends"
	FieldFriendReq = "friendReq"
)

type ProfileRepository struct {
	store Store
}

func NewProfileRepository(store Store) *ProfileRepository {
	return &ProfileRepository{store: store}
}

func (r *ProfileRepository) Create(ctx context.Context, p profile.Profile) error {
	return r.store.Set(ctx, ProfilesCollection, p.UserId, p)
}

func (r *ProfileRepository) Get(ctx context.Context, userId string) (*profile.Profile, error) {
	var p profile.Profile
	if err := r.store.Get(ctx, ProfilesCollection, userId, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetUser decodes only the public fields of the profile document.
func (r *ProfileRepository) GetUser(ctx context.Context, userId string) (*profile.User, error) {
	var u profile.User
	if err := r.store.Get(ctx, ProfilesCollection, userId, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *ProfileRepository) AddPost(ctx context.Context, userId string, postId string) error {
	return r.store.Update(ctx, ProfilesCollection, userId, Union(FieldPosts, postId))
}

func (r *ProfileRepository) AddToFeed(ctx context.Context, userId string, postId string) error {
	return r.store.Update(ctx, ProfilesCollection, userId, Union(FieldFeed, postId))
}

func (r *ProfileRepository) AddFriendRequest(ctx context.Context, userId string, from string) error {
	return r.store.Update(ctx, ProfilesCollection, userId, Union(FieldFriendReq, from))
}

// AcceptFriendRequest moves requester from userId's pending requests to
// userId's friends in a single document update.
func (r *ProfileRepository) AcceptFriendRequest(ctx context.Context, userId string, requester string) error {
	return r.store.Update(ctx, ProfilesCollection, userId,
		Remove(FieldFriendReq, requester),
		Union(FieldFriends, requester))
}

// RevertFriendRequest undoes the part of AcceptFriendRequest that changed
// userId's document, given the state before it ran: requester leaves
// friends unless already there, and returns to friendReq only if it was
// pending.
func (r *ProfileRepository) RevertFriendRequest(ctx context.Context, userId string, requester string, wasFriend bool, wasPending bool) error {
	var mutations []Mutation
	if !wasFriend {
		mutations = append(mutations, Remove(FieldFriends, requester))
	}
	if wasPending {
		mutations = append(mutations, Union(FieldFriendReq, requester))
	}
	if len(mutations) == 0 {
		return nil
	}
	return r.store.Update(ctx, ProfilesCollection, userId, mutations...)
}

func (r *ProfileRepository) AddFriend(ctx context.Context, userId string, friend string) error {
	return r.store.Update(ctx, ProfilesCollection, userId, Union(FieldFriends, friend))
}
