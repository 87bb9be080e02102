package repomongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bartossh/Paygate/repository"
)

type markerUp struct {
	Name string `bson:"name"`
}

type migration struct {
	run  func(ctx context.Context, db *mongo.Database) error
	name string
}

func index(collection string, keys bson.D, unique bool) func(ctx context.Context, db *mongo.Database) error {
	return func(ctx context.Context, db *mongo.Database) error {
		model := mongo.IndexModel{Keys: keys}
		if unique {
			model.Options = options.Index().SetUnique(true)
		}
		_, err := db.Collection(collection).Indexes().CreateOne(ctx, model)
		return err
	}
}

var migrations = []migration{
	{name: "index_name_migrations", run: index(migrationsCollection, bson.D{{Key: "name", Value: 1}}, true)},
	{name: "index_account_transactions", run: index(transactionsCollection, bson.D{{Key: "account", Value: 1}}, true)},
	{
		name: "index_status_created_transactions",
		run:  index(transactionsCollection, bson.D{{Key: "status", Value: 1}, {Key: "created", Value: 1}}, false),
	},
	{
		name: "index_status_created_paypal",
		run:  index(paypalCollection, bson.D{{Key: "status", Value: 1}, {Key: "created", Value: 1}}, false),
	},
}

// RunMigration creates the indexes not created yet and records them in the migrations collection.
func (db DataBase) RunMigration(ctx context.Context) error {
	migrated, err := db.migrate(ctx)
	if err != nil {
		return errors.Join(repository.ErrMigrationFaild, err)
	}
	if len(migrated) == 0 {
		return nil
	}
	if err := db.saveMigrated(ctx, migrated); err != nil {
		return errors.Join(repository.ErrMigrationFaild, err)
	}
	return nil
}

func (db DataBase) migrate(ctx context.Context) ([]string, error) {
	var migrated []string
	for _, m := range migrations {
		ok, err := db.checkExists(ctx, m.name)
		if err != nil {
			return migrated, err
		}
		if ok {
			continue
		}
		if err := m.run(ctx, &db.inner); err != nil {
			return migrated, fmt.Errorf("migration %s: %w", m.name, err)
		}
		migrated = append(migrated, m.name)
	}
	return migrated, nil
}

func (db DataBase) checkExists(ctx context.Context, name string) (bool, error) {
	var m markerUp
	if err := db.inner.Collection(migrationsCollection).FindOne(ctx, bson.M{"name": name}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("failed to execute find query, %w", err)
	}
	return true, nil
}

func (db DataBase) saveMigrated(ctx context.Context, names []string) error {
	documents := make([]interface{}, 0, len(names))
	for _, name := range names {
		documents = append(documents, markerUp{Name: name})
	}
	if _, err := db.inner.Collection(migrationsCollection).InsertMany(ctx, documents); err != nil {
		return fmt.Errorf("cannot save migrations marker up, %w", err)
	}
	return nil
}
