// Package mongo connects the service to MongoDB.
//
// Configuration comes from MONGODB_* environment variables (see Config).
// New retries the initial connection so the process survives a database that
// starts after it, and Healthcheck plugs into the readiness probe:
//
//	db, err := mongo.NewWithDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer db.Client().Disconnect(context.Background())
//
//	ready := mongo.Healthcheck(db.Client())
//
// Stores in svc/subscriber and svc/catalog receive the *mongo.Database and own
// their collections and indexes.
package mongo
