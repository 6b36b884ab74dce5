package repository

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func TestRawToSnapshot(t *testing.T) {
	raw, err := bson.Marshal(bson.M{
		"mal_id": int32(21),
		"title":  "One Piece",
		"images": bson.M{"jpg": bson.M{"image_url": "https://cdn/x.jpg"}},
		"genres": bson.A{"Action", "Adventure"},
	})
	require.NoError(t, err)

	snapshot, err := rawToSnapshot(bson.Raw(raw))
	require.NoError(t, err)

	assert.Equal(t, float64(21), snapshot["mal_id"])
	assert.Equal(t, "One Piece", snapshot["title"])
	images, ok := snapshot["images"].(map[string]any)
	require.True(t, ok, "nested documents must decode as maps, got %T", snapshot["images"])
	assert.Contains(t, images, "jpg")
	assert.Equal(t, []any{"Action", "Adventure"}, snapshot["genres"])
}

func TestRawToSnapshot_Empty(t *testing.T) {
	snapshot, err := rawToSnapshot(nil)
	require.NoError(t, err)
	assert.NotNil(t, snapshot)
	assert.Empty(t, snapshot)
}

func TestMapMongoError(t *testing.T) {
	assert.NoError(t, mapMongoError(nil))
	assert.ErrorIs(t, mapMongoError(mongo.ErrNoDocuments), ErrNotFound)

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.ErrorIs(t, mapMongoError(dup), ErrDuplicate)

	other := errors.New("socket closed")
	assert.Equal(t, other, mapMongoError(other))
}
