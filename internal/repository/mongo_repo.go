package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"anime-watchlist/internal/domain"
)

const (
	usersCollection     = "users"
	watchlistCollection = "watchlist_entries"
)

// NewMongoClient abre la conexión y verifica conectividad.
func NewMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(uri).
		SetConnectTimeout(5 * time.Second).
		SetMaxPoolSize(10))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctxPing, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// EnsureMongoIndexes crea los índices únicos de los que dependen las reglas de unicidad.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("users_email_unique")},
	})
	if err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}
	_, err = db.Collection(watchlistCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "external_anime_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("watchlist_owner_anime_unique"),
		},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "added_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("watchlist indexes: %w", err)
	}
	return nil
}

func mapMongoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	default:
		return err
	}
}

type userDocument struct {
	ID                string    `bson:"_id"`
	Name              string    `bson:"name"`
	Email             string    `bson:"email"`
	PasswordHash      string    `bson:"password_hash"`
	IsVerified        bool      `bson:"is_verified"`
	VerificationToken *string   `bson:"verification_token"`
	ResetToken        *string   `bson:"reset_token"`
	ProfileImageURL   *string   `bson:"profile_image_url"`
	RegisteredAt      time.Time `bson:"registered_at"`
}

func (d userDocument) toDomain() domain.User {
	return domain.User{
		ID:                d.ID,
		Name:              d.Name,
		Email:             d.Email,
		PasswordHash:      d.PasswordHash,
		IsVerified:        d.IsVerified,
		VerificationToken: d.VerificationToken,
		ResetToken:        d.ResetToken,
		ProfileImageURL:   d.ProfileImageURL,
		RegisteredAt:      d.RegisteredAt.UTC(),
	}
}

// MongoUserRepository implementa UserRepository sobre una colección de MongoDB.
type MongoUserRepository struct {
	coll *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{coll: db.Collection(usersCollection)}
}

func (r *MongoUserRepository) Create(ctx context.Context, user domain.User) error {
	_, err := r.coll.InsertOne(ctx, userDocument{
		ID:                user.ID,
		Name:              user.Name,
		Email:             user.Email,
		PasswordHash:      user.PasswordHash,
		IsVerified:        user.IsVerified,
		VerificationToken: user.VerificationToken,
		ResetToken:        user.ResetToken,
		ProfileImageURL:   user.ProfileImageURL,
		RegisteredAt:      user.RegisteredAt,
	})
	return mapMongoError(err)
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (domain.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return domain.User{}, mapMongoError(err)
	}
	return doc.toDomain(), nil
}

func (r *MongoUserRepository) MarkVerified(ctx context.Context, id, token string) error {
	return r.setWhere(ctx,
		bson.M{"_id": id, "is_verified": false, "verification_token": token},
		bson.M{"is_verified": true, "verification_token": nil})
}

func (r *MongoUserRepository) SetResetToken(ctx context.Context, id, token string) error {
	return r.set(ctx, id, bson.M{"reset_token": token})
}

func (r *MongoUserRepository) ResetPassword(ctx context.Context, id, token, passwordHash string) error {
	return r.setWhere(ctx,
		bson.M{"_id": id, "reset_token": token},
		bson.M{"password_hash": passwordHash, "reset_token": nil})
}

func (r *MongoUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.set(ctx, id, bson.M{"password_hash": passwordHash})
}

func (r *MongoUserRepository) UpdateProfileImage(ctx context.Context, id, url string) error {
	return r.set(ctx, id, bson.M{"profile_image_url": url})
}

func (r *MongoUserRepository) set(ctx context.Context, id string, fields bson.M) error {
	return r.setWhere(ctx, bson.M{"_id": id}, fields)
}

func (r *MongoUserRepository) setWhere(ctx context.Context, filter, fields bson.M) error {
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": fields})
	if err != nil {
		return mapMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

type entryDocument struct {
	ID              string    `bson:"_id"`
	OwnerID         string    `bson:"owner_id"`
	ExternalAnimeID int       `bson:"external_anime_id"`
	AnimeData       bson.Raw  `bson:"anime_data"`
	Status          string    `bson:"status"`
	WatchURL        string    `bson:"watch_url"`
	AddedAt         time.Time `bson:"added_at"`
}

func (d entryDocument) toDomain() (domain.WatchlistEntry, error) {
	snapshot, err := rawToSnapshot(d.AnimeData)
	if err != nil {
		return domain.WatchlistEntry{}, err
	}
	return domain.WatchlistEntry{
		ID:              d.ID,
		OwnerID:         d.OwnerID,
		ExternalAnimeID: d.ExternalAnimeID,
		AnimeSnapshot:   snapshot,
		Status:          domain.WatchStatus(d.Status),
		WatchURL:        d.WatchURL,
		AddedAt:         d.AddedAt.UTC(),
	}, nil
}

// rawToSnapshot pasa por extended JSON relajado para que los subdocumentos
// vuelvan como map[string]any y no como bson.D.
func rawToSnapshot(raw bson.Raw) (domain.AnimeSnapshot, error) {
	if len(raw) == 0 {
		return domain.AnimeSnapshot{}, nil
	}
	ext, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("anime_data to json: %w", err)
	}
	var snapshot domain.AnimeSnapshot
	if err := json.Unmarshal(ext, &snapshot); err != nil {
		return nil, fmt.Errorf("decode anime_data: %w", err)
	}
	return snapshot, nil
}

// MongoWatchlistRepository implementa WatchlistRepository sobre MongoDB.
type MongoWatchlistRepository struct {
	coll *mongo.Collection
}

func NewMongoWatchlistRepository(db *mongo.Database) *MongoWatchlistRepository {
	return &MongoWatchlistRepository{coll: db.Collection(watchlistCollection)}
}

func (r *MongoWatchlistRepository) Create(ctx context.Context, entry domain.WatchlistEntry) error {
	_, err := r.coll.InsertOne(ctx, bson.M{
		"_id":               entry.ID,
		"owner_id":          entry.OwnerID,
		"external_anime_id": entry.ExternalAnimeID,
		"anime_data":        map[string]any(entry.AnimeSnapshot),
		"status":            string(entry.Status),
		"watch_url":         entry.WatchURL,
		"added_at":          entry.AddedAt,
	})
	return mapMongoError(err)
}

func (r *MongoWatchlistRepository) GetByID(ctx context.Context, id string) (domain.WatchlistEntry, error) {
	var doc entryDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return domain.WatchlistEntry{}, mapMongoError(err)
	}
	return doc.toDomain()
}

func (r *MongoWatchlistRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.WatchlistEntry, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"owner_id": ownerID},
		options.Find().SetSort(bson.D{{Key: "added_at", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, mapMongoError(err)
	}
	var docs []entryDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	entries := make([]domain.WatchlistEntry, 0, len(docs))
	for _, doc := range docs {
		entry, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *MongoWatchlistRepository) ExistsForOwner(ctx context.Context, ownerID string, externalAnimeID int) (bool, error) {
	n, err := r.coll.CountDocuments(ctx,
		bson.M{"owner_id": ownerID, "external_anime_id": externalAnimeID},
		options.Count().SetLimit(1))
	if err != nil {
		return false, mapMongoError(err)
	}
	return n > 0, nil
}

func (r *MongoWatchlistRepository) Update(ctx context.Context, entry domain.WatchlistEntry) (domain.WatchlistEntry, error) {
	var doc entryDocument
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": entry.ID, "owner_id": entry.OwnerID},
		bson.M{"$set": bson.M{
			"anime_data": map[string]any(entry.AnimeSnapshot),
			"status":     string(entry.Status),
			"watch_url":  entry.WatchURL,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return domain.WatchlistEntry{}, mapMongoError(err)
	}
	return doc.toDomain()
}

func (r *MongoWatchlistRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapMongoError(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
