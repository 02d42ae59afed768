package store

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/codxp/xptracker/internal/ledger"
)

// MongoConfig contains connection settings for the MongoDB account store.
type MongoConfig struct {
	URI        string // e.g. mongodb://localhost:27017
	Database   string // e.g. codxp_tokens
	Collection string // e.g. users
}

// MongoStore implements AccountStore on a shared MongoDB collection keyed
// by username with a unique index. Uniqueness and upsert atomicity come
// from the server, not from application-level checks.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	ctxTimeout time.Duration
}

// mongoDocument mirrors the persisted layout of the original tooling.
type mongoDocument struct {
	Username     string           `bson:"username"`
	PasswordHash string           `bson:"password_hash"`
	Tokens       map[string][]int `bson:"tokens"`
	CodUsername  string           `bson:"cod_username"`
	Prestige     string           `bson:"prestige"`
	Level        int              `bson:"level"`
}

// NewMongoStore establishes the connection, pings and ensures indexes.
func NewMongoStore(cfg MongoConfig) (*MongoStore, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "codxp_tokens"
	}
	if cfg.Collection == "" {
		cfg.Collection = "users"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	s := &MongoStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		ctxTimeout: 5 * time.Second,
	}
	if err := s.ensureIndexes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.ctxTimeout)
	defer cancel()
	usernameIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("username_unique"),
	}
	_, err := s.collection.Indexes().CreateOne(ctx, usernameIdx)
	return err
}

// Load implements AccountStore.
func (s *MongoStore) Load(ctx context.Context, username string) (*Account, error) {
	ctx, cancel := context.WithTimeout(ctx, s.ctxTimeout)
	defer cancel()

	var doc mongoDocument
	err := s.collection.FindOne(ctx, bson.M{"username": normalizeUsername(username)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toAccount(), nil
}

// Create implements AccountStore. The unique index turns a concurrent
// duplicate registration into a duplicate-key error for the loser.
func (s *MongoStore) Create(ctx context.Context, account *Account) error {
	ctx, cancel := context.WithTimeout(ctx, s.ctxTimeout)
	defer cancel()

	cp := account.clone()
	cp.normalize()
	_, err := s.collection.InsertOne(ctx, toMongoDocument(cp))
	if mongo.IsDuplicateKeyError(err) {
		return ErrAccountExists
	}
	return err
}

// Upsert implements AccountStore. The mutator runs on the loaded (or
// default) account, then a single UpdateOne with upsert=true writes only
// the fields the mutator actually changed; every untouched field rides in
// $setOnInsert with its default value. An untouched field is therefore
// never written back over an existing document — a credential inserted by
// a concurrent registration survives a racing ledger write.
func (s *MongoStore) Upsert(ctx context.Context, username string, mutate func(*Account)) (*Account, error) {
	loadCtx, cancel := context.WithTimeout(ctx, s.ctxTimeout)
	base, err := s.Load(loadCtx, username)
	cancel()
	if err == ErrAccountNotFound {
		base = DefaultAccount(username)
	} else if err != nil {
		return nil, err
	}
	base.normalize()

	acc := base.clone()
	mutate(acc)
	acc.normalize()

	ctx, cancel = context.WithTimeout(ctx, s.ctxTimeout)
	defer cancel()
	_, err = s.collection.UpdateOne(ctx,
		bson.M{"username": normalizeUsername(username)},
		upsertUpdate(base, acc),
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert account: %w", err)
	}
	return acc, nil
}

// upsertUpdate builds the update document for Upsert: $set carries only
// the fields whose value the mutator changed, $setOnInsert carries the
// default document for the rest, matching the persisted layout of the
// original tooling. A no-op mutation produces no $set at all.
func upsertUpdate(base, mutated *Account) bson.M {
	def := DefaultAccount(mutated.Username)
	set := bson.M{}
	onInsert := bson.M{"username": normalizeUsername(mutated.Username)}

	field := func(name string, changed bool, value, defaultValue interface{}) {
		if changed {
			set[name] = value
		} else {
			onInsert[name] = defaultValue
		}
	}
	field("password_hash", mutated.PasswordHash != base.PasswordHash,
		mutated.PasswordHash, def.PasswordHash)
	field("tokens", !reflect.DeepEqual(mutated.Tokens, base.Tokens),
		mutated.Tokens.ToSlices(), def.Tokens.ToSlices())
	field("cod_username", mutated.Profile.CodUsername != base.Profile.CodUsername,
		mutated.Profile.CodUsername, def.Profile.CodUsername)
	field("prestige", mutated.Profile.Prestige != base.Profile.Prestige,
		mutated.Profile.Prestige, def.Profile.Prestige)
	field("level", mutated.Profile.Level != base.Profile.Level,
		mutated.Profile.Level, def.Profile.Level)

	update := bson.M{"$setOnInsert": onInsert}
	if len(set) > 0 {
		update["$set"] = set
	}
	return update
}

// Close terminates the connection.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (d *mongoDocument) toAccount() *Account {
	acc := &Account{
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		Tokens:       ledger.FromSlices(d.Tokens),
		Profile: Profile{
			CodUsername: d.CodUsername,
			Prestige:    d.Prestige,
			Level:       ClampLevel(d.Level),
		},
	}
	return acc
}

func toMongoDocument(acc *Account) mongoDocument {
	return mongoDocument{
		Username:     normalizeUsername(acc.Username),
		PasswordHash: acc.PasswordHash,
		Tokens:       acc.Tokens.ToSlices(),
		CodUsername:  acc.Profile.CodUsername,
		Prestige:     acc.Profile.Prestige,
		Level:        acc.Profile.Level,
	}
}
