package storage

import (
	"context"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-redis/redis/v8"
)

var cacheEncMode cbor.EncMode

func init() {
	var err error
	cacheEncMode, err = cbor.EncOptions{
		Time:    cbor.TimeRFC3339Nano,
		TimeTag: cbor.EncTagRequired,
	}.EncMode()
	if err != nil {
		panic("storage: CBOR encoder initialization failed: " + err.Error())
	}
}

// CachedStore is a read-through redis cache in front of another Store.
// Only the listed collections are cached; writes to a cached document
// evict it.
type CachedStore struct {
	Client          *redis.Client
	InternalStorage Store
	Collections     map[string]bool
	TTL             time.Duration
}

func (cs *CachedStore) Get(ctx context.Context, collection string, id string, out any) error {
	if !cs.Collections[collection] {
		return cs.InternalStorage.Get(ctx, collection, id, out)
	}
	key := cs.docKey(collection, id)
	if err := cs.getByKey(ctx, key, out); err == nil {
		return nil
	}
	if err := cs.InternalStorage.Get(ctx, collection, id, out); err != nil {
		return err
	}
	cs.storeByKey(ctx, key, out)
	return nil
}

func (cs *CachedStore) Set(ctx context.Context, collection string, id string, doc any) error {
	err := cs.InternalStorage.Set(ctx, collection, id, doc)
	cs.evict(ctx, collection, id)
	return err
}

func (cs *CachedStore) Create(ctx context.Context, collection string, id string, doc any) error {
	if err := cs.InternalStorage.Create(ctx, collection, id, doc); err != nil {
		return err
	}
	if cs.Collections[collection] {
		cs.storeByKey(ctx, cs.docKey(collection, id), doc)
	}
	return nil
}

func (cs *CachedStore) Update(ctx context.Context, collection string, id string, mutations ...Mutation) error {
	err := cs.InternalStorage.Update(ctx, collection, id, mutations...)
	cs.evict(ctx, collection, id)
	return err
}

func (cs *CachedStore) getByKey(ctx context.Context, key string, out any) error {
	raw, err := cs.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return cbor.Unmarshal(raw, out)
}

func (cs *CachedStore) storeByKey(ctx context.Context, key string, doc any) {
	raw, err := cacheEncMode.Marshal(doc)
	if err != nil {
		return
	}
	_ = cs.Client.Set(ctx, key, raw, cs.TTL).Err()
}

func (cs *CachedStore) evict(ctx context.Context, collection string, id string) {
	if cs.Collections[collection] {
		cs.Client.Del(ctx, cs.docKey(collection, id))
	}
}

func (cs *CachedStore) docKey(collection string, id string) string {
	return "doc:" + collection + ":" + id
}
