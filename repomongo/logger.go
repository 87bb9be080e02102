package repomongo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bartossh/Paygate/logger"
	"github.com/bartossh/Paygate/repository"
)

const logWriteTimeout = 5 * time.Second

// Write stores a marshaled logger.Log in the logs collection, so mongo backed gateways keep their audit
// trail next to the transactions. It implements io.Writer for the logging helper.
func (db DataBase) Write(p []byte) (int, error) {
	var l logger.Log
	if err := json.Unmarshal(p, &l); err != nil {
		return 0, err
	}
	if hex, ok := l.ID.(string); ok {
		if oid, err := primitive.ObjectIDFromHex(hex); err == nil {
			l.ID = oid
		}
	}
	if l.ID == nil {
		l.ID = primitive.NewObjectID()
	}

	ctx, cancel := context.WithTimeout(context.Background(), logWriteTimeout)
	defer cancel()
	if _, err := db.inner.Collection(logsCollection).InsertOne(ctx, l); err != nil {
		return 0, errors.Join(repository.ErrInsertFailed, err)
	}
	return len(p), nil
}
