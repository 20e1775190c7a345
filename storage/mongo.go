package storage

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keys every document by _id. Union maps to $addToSet and
// remove to $pull, so list updates are never read-modify-write.
type MongoStore struct {
	DB *mongo.Database
}

func (m *MongoStore) Get(ctx context.Context, collection string, id string, out any) error {
	err := m.DB.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func (m *MongoStore) Set(ctx context.Context, collection string, id string, doc any) error {
	opts := options.Replace().SetUpsert(true)
	_, err := m.DB.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, doc, opts)
	return err
}

func (m *MongoStore) Create(ctx context.Context, collection string, id string, doc any) error {
	opts := options.Update().SetUpsert(true)
	res, err := m.DB.Collection(collection).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$setOnInsert": doc},
		opts)
	if err != nil {
		return err
	}
	if res.UpsertedCount == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (m *MongoStore) Update(ctx context.Context, collection string, id string, mutations ...Mutation) error {
	update, err := buildUpdate(mutations)
	if err != nil {
		return err
	}
	res, err := m.DB.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func buildUpdate(mutations []Mutation) (bson.M, error) {
	unions, removes, err := groupMutations(mutations)
	if err != nil {
		return nil, err
	}
	update := bson.M{}
	if len(unions) > 0 {
		addToSet := bson.M{}
		for field, values := range unions {
			addToSet[field] = bson.M{"$each": values}
		}
		update["$addToSet"] = addToSet
	}
	if len(removes) > 0 {
		pull := bson.M{}
		for field, values := range removes {
			pull[field] = bson.M{"$in": values}
		}
		update["$pull"] = pull
	}
	return update, nil
}
