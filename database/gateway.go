package database

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/ridoystarlord/mongrato/schema"
)

// codeNamespaceExists is the server error code for an existing collection.
const codeNamespaceExists = 48

var ErrCollectionExists = errors.New("collection already exists")

// CreateResult is returned by a successful CreateCollection.
type CreateResult struct {
	Namespace string
}

// Gateway is the database surface the migration runner needs.
type Gateway interface {
	CreateCollection(ctx context.Context, name string, def *schema.Definition) (CreateResult, error)
	DropCollection(ctx context.Context, name string) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// IsNamespaceExists reports whether err is the server's "namespace exists" error.
func IsNamespaceExists(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCollectionExists) {
		return true
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorCode(codeNamespaceExists)
	}
	return false
}

// MongoGateway implements Gateway on a single database.
type MongoGateway struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ Gateway = (*MongoGateway)(nil)

// NewMongoGateway wraps an already connected database handle.
func NewMongoGateway(db *mongo.Database) *MongoGateway {
	return &MongoGateway{client: db.Client(), db: db}
}

// Database exposes the underlying handle for introspection and the ledger.
func (g *MongoGateway) Database() *mongo.Database {
	return g.db
}

// CreateCollection creates name with the definition's options. An existing
// collection yields an error wrapping ErrCollectionExists.
func (g *MongoGateway) CreateCollection(ctx context.Context, name string, def *schema.Definition) (CreateResult, error) {
	opts, err := def.CollectionOptions()
	if err != nil {
		return CreateResult{}, fmt.Errorf("collection options for %s: %w", name, err)
	}

	if err := g.db.CreateCollection(ctx, name, opts); err != nil {
		if IsNamespaceExists(err) {
			return CreateResult{}, fmt.Errorf("%w: %s: %v", ErrCollectionExists, g.namespace(name), err)
		}
		return CreateResult{}, fmt.Errorf("creating collection %s: %w", name, err)
	}

	return CreateResult{Namespace: g.namespace(name)}, nil
}

func (g *MongoGateway) DropCollection(ctx context.Context, name string) error {
	if err := g.db.Collection(name).Drop(ctx); err != nil {
		return fmt.Errorf("dropping collection %s: %w", name, err)
	}
	return nil
}

func (g *MongoGateway) CollectionExists(ctx context.Context, name string) (bool, error) {
	names, err := g.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return false, fmt.Errorf("error checking if collection exists: %w", err)
	}
	return len(names) > 0, nil
}

func (g *MongoGateway) Ping(ctx context.Context) error {
	return g.client.Ping(ctx, nil)
}

func (g *MongoGateway) Close(ctx context.Context) error {
	return g.client.Disconnect(ctx)
}

func (g *MongoGateway) namespace(name string) string {
	return g.db.Name() + "." + name
}
