package storage

import "context"

// Store is a key-document store. Every call touches exactly one document;
// there is no multi-document transaction.
type Store interface {
	// Get decodes the document into out, or returns ErrNotFound.
	Get(ctx context.Context, collection string, id string, out any) error
	// Set writes the whole document, creating it if absent.
	Set(ctx context.Context, collection string, id string, doc any) error
	// Create writes the document only if no document has that id yet,
	// otherwise it returns ErrAlreadyExists.
	Create(ctx context.Context, collection string, id string, doc any) error
	// Update applies all mutations to one existing document atomically.
	Update(ctx context.Context, collection string, id string, mutations ...Mutation) error
}

type MutationOp int

const (
	OpUnion MutationOp = iota
	OpRemove
)

func (op MutationOp) String() string {
	switch op {
	case OpUnion:
		return "union"
	case OpRemove:
		return "remove"
	}
	return "unknown"
}

// Mutation adds Value to, or removes it from, the array field Field.
// Both operations are idempotent and commute with each other on distinct
// values, so concurrent writers never lose an element.
type Mutation struct {
	Op    MutationOp
	Field string
	Value string
}

func Union(field string, value string) Mutation {
	return Mutation{Op: OpUnion, Field: field, Value: value}
}

func Remove(field string, value string) Mutation {
	return Mutation{Op: OpRemove, Field: field, Value: value}
}

// groupMutations splits mutations by operation and field, keeping the
// order values were given in. A field may not be both unioned and removed
// in the same update.
func groupMutations(mutations []Mutation) (map[string][]string, map[string][]string, error) {
	if len(mutations) == 0 {
		return nil, nil, ErrInvalidMutation
	}
	unions := make(map[string][]string)
	removes := make(map[string][]string)
	for _, m := range mutations {
		switch m.Op {
		case OpUnion:
			unions[m.Field] = append(unions[m.Field], m.Value)
		case OpRemove:
			removes[m.Field] = append(removes[m.Field], m.Value)
		default:
			return nil, nil, ErrInvalidMutation
		}
	}
	for field := range unions {
		if _, ok := removes[field]; ok {
			return nil, nil, ErrInvalidMutation
		}
	}
	return unions, removes, nil
}
