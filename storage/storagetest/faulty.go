// Package storagetest provides Store wrappers for tests that need the
// document store to fail on specific calls.
package storagetest

import (
	"context"
	"errors"
	"sync"

	"mini-social/storage"
)

var ErrInjected = errors.New("injected store failure")

// Call describes one Store call as seen by a Fault.
type Call struct {
	Method     string
	Collection string
	Id         string
	Mutations  []storage.Mutation
}

// Fault decides whether a call fails. Returning nil lets it through.
type Fault func(c Call) error

// FaultyStore forwards to Store unless Fault rejects the call. It also
// records every call it sees.
type FaultyStore struct {
	Store storage.Store
	Fault Fault

	mu    sync.Mutex
	calls []Call
}

func (fs *FaultyStore) Get(ctx context.Context, collection string, id string, out any) error {
	if err := fs.check(Call{Method: "Get", Collection: collection, Id: id}); err != nil {
		return err
	}
	return fs.Store.Get(ctx, collection, id, out)
}

func (fs *FaultyStore) Set(ctx context.Context, collection string, id string, doc any) error {
	if err := fs.check(Call{Method: "Set", Collection: collection, Id: id}); err != nil {
		return err
	}
	return fs.Store.Set(ctx, collection, id, doc)
}

func (fs *FaultyStore) Create(ctx context.Context, collection string, id string, doc any) error {
	if err := fs.check(Call{Method: "Create", Collection: collection, Id: id}); err != nil {
		return err
	}
	return fs.Store.Create(ctx, collection, id, doc)
}

func (fs *FaultyStore) Update(ctx context.Context, collection string, id string, mutations ...storage.Mutation) error {
	if err := fs.check(Call{Method: "Update", Collection: collection, Id: id, Mutations: mutations}); err != nil {
		return err
	}
	return fs.Store.Update(ctx, collection, id, mutations...)
}

func (fs *FaultyStore) Calls() []Call {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]Call(nil), fs.calls...)
}

func (fs *FaultyStore) check(c Call) error {
	fs.mu.Lock()
	fs.calls = append(fs.calls, c)
	fs.mu.Unlock()
	if fs.Fault == nil {
		return nil
	}
	return fs.Fault(c)
}

// FailUpdatesOf fails every Update of the document id.
func FailUpdatesOf(id string) Fault {
	return func(c Call) error {
		if c.Method == "Update" && c.Id == id {
			return ErrInjected
		}
		return nil
	}
}

// FailGetsOf fails every Get of the document id.
func FailGetsOf(id string) Fault {
	return func(c Call) error {
		if c.Method == "Get" && c.Id == id {
			return ErrInjected
		}
		return nil
	}
}

// FailAll fails every call.
func FailAll() Fault {
	return func(Call) error { return ErrInjected }
}
