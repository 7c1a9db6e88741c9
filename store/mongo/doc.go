// Package mongo implements store.Store on MongoDB using the official
// mongo-driver/v2. It is the primary backend for deployments where several
// batch processes share one repository.
//
// The caller owns the *mongo.Client lifecycle -- Store never disconnects
// it. Pass a database handle through the constructor:
//
//	import (
//	    mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
//	    "go.mongodb.org/mongo-driver/v2/mongo/options"
//	    "github.com/xraph/jobrepo/store/mongo"
//	)
//
//	client, _ := mongodriver.Connect(options.Client().ApplyURI(uri))
//	store := mongo.New(client.Database("jobrepo"))
//	store.Migrate(ctx)
//
// Documents carry a numeric "id" field issued by the allocator next to the
// driver-generated "_id". Counter records live in SEQUENCES keyed by kind:
//
//	{ "_id": "JOB_EXECUTION", "count": 42 }
package mongo
