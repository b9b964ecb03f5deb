package mongorepo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-auth-session-server/internal/errors"
	"github.com/jrsteele09/go-auth-session-server/users"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "users"

var _ users.UserRepo = (*Repo)(nil)

// Repo stores identities in MongoDB. Email and phone carry unique indexes, phone sparse so
// records without one never collide.
type Repo struct {
	col     *mongo.Collection
	nowFunc func() time.Time
}

func New(db *mongo.Database) *Repo {
	return &Repo{col: db.Collection(CollectionName), nowFunc: time.Now}
}

func (r *Repo) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "phone", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	})
	if err != nil {
		return errors.Wrap(err, "[mongorepo.EnsureIndexes] users")
	}
	return nil
}

func (r *Repo) FindByID(ctx context.Context, id string, statuses ...users.Status) (*users.User, error) {
	return r.findOne(ctx, bson.M{"_id": id}, statuses)
}

func (r *Repo) FindByEmail(ctx context.Context, email string, statuses ...users.Status) (*users.User, error) {
	return r.findOne(ctx, bson.M{"email": email}, statuses)
}

func (r *Repo) FindByPhone(ctx context.Context, phone string, statuses ...users.Status) (*users.User, error) {
	if phone == "" {
		return nil, users.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"phone": phone}, statuses)
}

func (r *Repo) Create(ctx context.Context, user *users.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Version = 1
	if user.Addresses == nil {
		user.Addresses = []users.Address{}
	}
	if _, err := r.col.InsertOne(ctx, user); err != nil {
		if dupErr := duplicateKeyErr(err); dupErr != nil {
			return dupErr
		}
		return errors.Wrap(err, "[mongorepo.Create] insert")
	}
	return nil
}

// Update matches on both _id and version so the write only lands on the version the caller read.
func (r *Repo) Update(ctx context.Context, id string, patch users.Patch, version int64) (*users.User, error) {
	set := toSet(patch)
	set["updatedAt"] = r.nowFunc()

	var updated users.User
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "version": version},
		bson.M{"$set": set, "$inc": bson.M{"version": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if dupErr := duplicateKeyErr(err); dupErr != nil {
		return nil, dupErr
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.Wrap(err, "[mongorepo.Update] find and update")
	}

	// No match: either the id is gone or another writer moved the version on.
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, errors.Wrap(err, "[mongorepo.Update] count")
	}
	if n == 0 {
		return nil, users.ErrNotFound
	}
	return nil, apperrors.ErrDataModifiedConcurrently
}

func (r *Repo) findOne(ctx context.Context, filter bson.M, statuses []users.Status) (*users.User, error) {
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	var u users.User
	err := r.col.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[mongorepo.findOne]")
	}
	return &u, nil
}

func toSet(patch users.Patch) bson.M {
	set := bson.M{}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.Phone != nil {
		set["phone"] = *patch.Phone
	}
	if patch.PasswordHash != nil {
		set["password"] = *patch.PasswordHash
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.IsVerified != nil {
		set["isVerified"] = *patch.IsVerified
	}
	if patch.Addresses != nil {
		set["addresses"] = *patch.Addresses
	}
	return set
}

// duplicateKeyErr maps a unique index violation to the coded error for the field involved
func duplicateKeyErr(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if strings.Contains(err.Error(), "phone") {
		return apperrors.ErrPhoneAlreadyExists
	}
	return apperrors.ErrEmailAlreadyExists
}
