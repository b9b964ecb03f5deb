package mongorepo

import (
	"context"
	"time"

	"github.com/jrsteele09/go-auth-session-server/opaquetokens"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "mail_tokens"

var _ opaquetokens.Repo = (*Repo)(nil)

// Repo stores opaque tokens in MongoDB. Expired documents are removed by a TTL index on
// expiresAt; the service still rejects expired tokens the sweeper has not reached yet.
type Repo struct {
	col     *mongo.Collection
	nowFunc func() time.Time
}

func New(db *mongo.Database) *Repo {
	return &Repo{col: db.Collection(CollectionName), nowFunc: time.Now}
}

// EnsureIndexes creates the unique token index and the expiry TTL index.
func (r *Repo) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "type", Value: 1}}},
	})
	if err != nil {
		return errors.Wrap(err, "[mongorepo.EnsureIndexes] mail_tokens")
	}
	return nil
}

func (r *Repo) Create(ctx context.Context, token *opaquetokens.Token) error {
	if _, err := r.col.InsertOne(ctx, token); err != nil {
		return errors.Wrap(err, "[mongorepo.Create] insert")
	}
	return nil
}

func (r *Repo) FindByToken(ctx context.Context, token string, tokenType opaquetokens.Type) (*opaquetokens.Token, error) {
	var t opaquetokens.Token
	err := r.col.FindOne(ctx, bson.M{"token": token, "type": tokenType}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, opaquetokens.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[mongorepo.FindByToken] find")
	}
	return &t, nil
}

// MarkUsed filters on isUsed=false so only one of several concurrent writers can modify the document.
func (r *Repo) MarkUsed(ctx context.Context, token string) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"token": token, "isUsed": false},
		bson.M{"$set": bson.M{"isUsed": true, "usedAt": r.nowFunc()}},
	)
	if err != nil {
		return false, errors.Wrap(err, "[mongorepo.MarkUsed] update")
	}
	return res.ModifiedCount == 1, nil
}
