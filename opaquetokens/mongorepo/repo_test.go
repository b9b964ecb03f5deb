package mongorepo_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session-server/opaquetokens"
	"github.com/jrsteele09/go-auth-session-server/opaquetokens/mongorepo"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const testNamespace = "dev_db.mail_tokens"

func TestRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("ensure indexes", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		require.NoError(mt, mongorepo.New(mt.DB).EnsureIndexes(ctx))
	})

	mt.Run("create", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		err := mongorepo.New(mt.DB).Create(ctx, &opaquetokens.Token{
			Token:     "abc",
			UserID:    "u1",
			Email:     "jane@x.com",
			Type:      opaquetokens.TypeEmailVerification,
			ExpiresAt: time.Now().Add(time.Hour),
		})
		require.NoError(mt, err)
	})

	mt.Run("create duplicate", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key error"}))
		err := mongorepo.New(mt.DB).Create(ctx, &opaquetokens.Token{Token: "abc"})
		require.Error(mt, err)
		require.Contains(mt, err.Error(), "[mongorepo.Create] insert")
	})

	mt.Run("find by token", func(mt *mtest.T) {
		expiresAt := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(1, testNamespace, mtest.FirstBatch, bson.D{
			{Key: "token", Value: "abc"},
			{Key: "userId", Value: "u1"},
			{Key: "email", Value: "jane@x.com"},
			{Key: "type", Value: "EMAIL_VERIFICATION"},
			{Key: "isUsed", Value: false},
			{Key: "expiresAt", Value: expiresAt},
		}))

		tok, err := mongorepo.New(mt.DB).FindByToken(ctx, "abc", opaquetokens.TypeEmailVerification)
		require.NoError(mt, err)
		require.Equal(mt, "u1", tok.UserID)
		require.Equal(mt, opaquetokens.TypeEmailVerification, tok.Type)
		require.False(mt, tok.IsUsed)
		require.True(mt, expiresAt.Equal(tok.ExpiresAt))
	})

	mt.Run("find missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNamespace, mtest.FirstBatch))

		_, err := mongorepo.New(mt.DB).FindByToken(ctx, "nope", opaquetokens.TypeResetPassword)
		require.ErrorIs(mt, err, opaquetokens.ErrNotFound)
	})

	mt.Run("mark used", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		marked, err := mongorepo.New(mt.DB).MarkUsed(ctx, "abc")
		require.NoError(mt, err)
		require.True(mt, marked)
	})

	mt.Run("mark used loses the race", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		marked, err := mongorepo.New(mt.DB).MarkUsed(ctx, "abc")
		require.NoError(mt, err)
		require.False(mt, marked)
	})
}
