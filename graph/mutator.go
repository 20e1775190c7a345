// Package graph maintains the friend relationship between two profiles.
// Each step updates a single profile document; there is no transaction
// spanning both.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mini-social/domain/profile"
)

var (
	ErrSelfFriendRequest = errors.New("cannot befriend yourself")
	ErrNoFriendRequest   = errors.New("no pending friend request")
)

type ProfileStore interface {
	Get(ctx context.Context, userId string) (*profile.Profile, error)
	AddFriendRequest(ctx context.Context, userId string, from string) error
	AcceptFriendRequest(ctx context.Context, userId string, requester string) error
	RevertFriendRequest(ctx context.Context, userId string, requester string, wasFriend bool, wasPending bool) error
	AddFriend(ctx context.Context, userId string, friend string) error
}

// PartialGraphMutationError means the accepter's side of an accept was
// written but the requester's side was not. RolledBack tells whether the
// accepter's side was reverted afterwards.
type PartialGraphMutationError struct {
	Accepter   string
	Requester  string
	RolledBack bool
	Err        error
}

func (e *PartialGraphMutationError) Error() string {
	state := "relationship left asymmetric"
	if e.RolledBack {
		state = "accept rolled back"
	}
	return fmt.Sprintf("accept of %s by %s: %s: %v", e.Requester, e.Accepter, state, e.Err)
}

func (e *PartialGraphMutationError) Unwrap() error {
	return e.Err
}

type Mutator struct {
	profiles   ProfileStore
	logger     *slog.Logger
	compensate bool
}

// NewMutator returns a Mutator. With compensate set, a failed second step
// of an accept reverts the first one.
func NewMutator(profiles ProfileStore, logger *slog.Logger, compensate bool) *Mutator {
	return &Mutator{profiles: profiles, logger: logger, compensate: compensate}
}

// SendRequest records from as a pending request on to's profile.
func (m *Mutator) SendRequest(ctx context.Context, from string, to string) error {
	if from == to {
		return ErrSelfFriendRequest
	}
	return m.profiles.AddFriendRequest(ctx, to, from)
}

// AcceptRequest first moves requester from accepter's pending requests to
// accepter's friends, then adds accepter to requester's friends. Accepting
// an existing friend again only repairs the requester's side. A rollback
// undoes only what the first step changed.
func (m *Mutator) AcceptRequest(ctx context.Context, accepter string, requester string) error {
	if accepter == requester {
		return ErrSelfFriendRequest
	}
	before, err := m.profiles.Get(ctx, accepter)
	if err != nil {
		return err
	}
	wasPending, wasFriend := before.HasFriendRequest(requester), before.HasFriend(requester)
	if !wasPending && !wasFriend {
		return ErrNoFriendRequest
	}
	if err := m.profiles.AcceptFriendRequest(ctx, accepter, requester); err != nil {
		return err
	}
	err = m.profiles.AddFriend(ctx, requester, accepter)
	if err == nil {
		return nil
	}

	partial := &PartialGraphMutationError{Accepter: accepter, Requester: requester, Err: err}
	if m.compensate {
		if rbErr := m.profiles.RevertFriendRequest(ctx, accepter, requester, wasFriend, wasPending); rbErr != nil {
			partial.Err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		} else {
			partial.RolledBack = true
		}
	}
	m.logger.Error("friend accept only partially applied",
		slog.String("accepter", accepter),
		slog.String("requester", requester),
		slog.Bool("rolled_back", partial.RolledBack),
		slog.Any("error", partial.Err))
	return partial
}
