//go:build integration

package mongo_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"

	mongomodule "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/schema"
	"github.com/xraph/jobrepo/store"
	mongostore "github.com/xraph/jobrepo/store/mongo"
	"github.com/xraph/jobrepo/store/storetest"
)

var _ store.Store = (*mongostore.Store)(nil)

// setupClient starts a MongoDB container and returns a connected client.
func setupClient(t *testing.T) *mongod.Client {
	t.Helper()
	ctx := context.Background()

	container, err := mongomodule.Run(ctx, "mongo:7")
	if err != nil {
		t.Fatalf("start mongo container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	client, err := mongod.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(ctx) })
	return client
}

func TestConformance(t *testing.T) {
	client := setupClient(t)
	var n atomic.Int64

	storetest.Run(t, func(*testing.T) store.Store {
		db := client.Database(fmt.Sprintf("jobrepo_test_%d", n.Add(1)))
		return mongostore.New(db, mongostore.WithLogger(slog.Default()))
	})
}

// An index created by hand under another name must not be duplicated.
func TestMigrate_EquivalentIndexUnderOtherName(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()
	db := client.Database("jobrepo_equivalent")

	_, err := db.Collection(string(schema.JobInstance)).Indexes().CreateOne(ctx, mongod.IndexModel{
		Keys:    bson.D{{Key: "jobName", Value: 1}, {Key: "jobKey", Value: 1}},
		Options: options.Index().SetName("legacy_name_key").SetUnique(true),
	})
	if err != nil {
		t.Fatalf("create legacy index: %v", err)
	}

	s := mongostore.New(db)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	idxs, err := s.ListIndexes(ctx)
	if err != nil {
		t.Fatalf("ListIndexes: %v", err)
	}
	for _, name := range idxs[schema.JobInstance] {
		if name == "job_instance_name_key_uq" {
			t.Errorf("equivalent index duplicated: %v", idxs[schema.JobInstance])
		}
	}
}

// A non-unique index on the unique key must fail Migrate rather than
// leave (jobName, jobKey) unenforced.
func TestMigrate_NonUniqueIndexConflicts(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()
	db := client.Database("jobrepo_conflict")

	_, err := db.Collection(string(schema.JobInstance)).Indexes().CreateOne(ctx, mongod.IndexModel{
		Keys:    bson.D{{Key: "jobName", Value: 1}, {Key: "jobKey", Value: 1}},
		Options: options.Index().SetName("legacy_name_key"),
	})
	if err != nil {
		t.Fatalf("create legacy index: %v", err)
	}

	err = mongostore.New(db).Migrate(ctx)
	if !errors.Is(err, jobrepo.ErrIndexConflict) {
		t.Fatalf("Migrate = %v, want ErrIndexConflict", err)
	}
}

func TestUnavailable(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()
	s := mongostore.New(client.Database("jobrepo_unavailable"))
	if err := client.Disconnect(ctx); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	err := s.Ping(ctx)
	if !errors.Is(err, jobrepo.ErrBackendUnavailable) {
		t.Fatalf("Ping after disconnect = %v, want ErrBackendUnavailable", err)
	}
}
