package storage

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
)

// InMemoryStore keeps documents BSON-encoded, so it decodes exactly the way
// MongoStore does.
type InMemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{collections: make(map[string]map[string][]byte)}
}

func (im *InMemoryStore) Get(_ context.Context, collection string, id string, out any) error {
	im.mu.RLock()
	defer im.mu.RUnlock()
	raw, ok := im.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	return bson.Unmarshal(raw, out)
}

func (im *InMemoryStore) Set(_ context.Context, collection string, id string, doc any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	im.mu.Lock()
	defer im.mu.Unlock()
	im.collection(collection)[id] = raw
	return nil
}

func (im *InMemoryStore) Create(_ context.Context, collection string, id string, doc any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	im.mu.Lock()
	defer im.mu.Unlock()
	c := im.collection(collection)
	if _, ok := c[id]; ok {
		return ErrAlreadyExists
	}
	c[id] = raw
	return nil
}

func (im *InMemoryStore) Update(_ context.Context, collection string, id string, mutations ...Mutation) error {
	unions, removes, err := groupMutations(mutations)
	if err != nil {
		return err
	}
	im.mu.Lock()
	defer im.mu.Unlock()
	raw, ok := im.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return err
	}
	for field, values := range unions {
		arr := toStrings(doc[field])
		for _, v := range values {
			if !containsString(arr, v) {
				arr = append(arr, v)
			}
		}
		doc[field] = arr
	}
	for field, values := range removes {
		arr := toStrings(doc[field])
		kept := make([]string, 0, len(arr))
		for _, elem := range arr {
			if !containsString(values, elem) {
				kept = append(kept, elem)
			}
		}
		doc[field] = kept
	}
	raw, err = bson.Marshal(doc)
	if err != nil {
		return err
	}
	im.collections[collection][id] = raw
	return nil
}

func (im *InMemoryStore) collection(name string) map[string][]byte {
	c, ok := im.collections[name]
	if !ok {
		c = make(map[string][]byte)
		im.collections[name] = c
	}
	return c
}

func toStrings(v any) []string {
	arr, ok := v.(bson.A)
	if !ok {
		return make([]string, 0)
	}
	res := make([]string, 0, len(arr))
	for _, elem := range arr {
		if s, ok := elem.(string); ok {
			res = append(res, s)
		}
	}
	return res
}

func containsString(arr []string, s string) bool {
	for _, elem := range arr {
		if elem == s {
			return true
		}
	}
	return false
}
