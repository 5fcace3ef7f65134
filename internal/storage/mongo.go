package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/annel0/ecs-world/internal/logging"
	"github.com/annel0/ecs-world/internal/world"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig содержит настройки подключения к MongoDB.
type MongoConfig struct {
	URI        string // например mongodb://localhost:27017
	Database   string // например worldsim
	Collection string // например snapshots
}

// MongoSnapshotRepo хранит снимки в коллекции MongoDB: документ на снимок
// с уникальным индексом по имени, запись через upsert.
type MongoSnapshotRepo struct {
	client     *mongo.Client
	collection *mongo.Collection
	ctxTimeout time.Duration
}

type mongoSnapshotDoc struct {
	Name      string    `bson:"name"`
	Entities  int       `bson:"entities"`
	Data      []byte    `bson:"data"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongoSnapshotRepo подключается к MongoDB и готовит индексы.
func NewMongoSnapshotRepo(cfg *MongoConfig) (*MongoSnapshotRepo, error) {
	if cfg == nil {
		cfg = &MongoConfig{}
	}
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "worldsim"
	}
	if cfg.Collection == "" {
		cfg.Collection = "snapshots"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("подключение к MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("проверка соединения с MongoDB: %w", err)
	}

	repo := &MongoSnapshotRepo{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		ctxTimeout: 5 * time.Second,
	}
	if err := repo.ensureIndexes(); err != nil {
		return nil, fmt.Errorf("создание индексов MongoDB: %w", err)
	}

	logging.Info("🍃 MongoDB хранилище снимков: %s/%s", cfg.Database, cfg.Collection)
	return repo, nil
}

func (r *MongoSnapshotRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.ctxTimeout)
	defer cancel()

	nameIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("name_unique"),
	}
	_, err := r.collection.Indexes().CreateOne(ctx, nameIdx)
	return err
}

// Save сохраняет снимок через upsert по имени.
func (r *MongoSnapshotRepo) Save(ctx context.Context, name string, snap *world.Snapshot) error {
	if name == "" {
		return fmt.Errorf("пустое имя снимка")
	}
	if snap == nil {
		return fmt.Errorf("пустой снимок")
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("сериализация снимка %q: %w", name, err)
	}

	doc := mongoSnapshotDoc{
		Name:      name,
		Entities:  len(snap.Entities),
		Data:      raw,
		UpdatedAt: time.Now().UTC(),
	}
	_, err = r.collection.UpdateOne(ctx,
		bson.M{"name": name},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("сохранение снимка %q в MongoDB: %w", name, err)
	}
	return nil
}

// Load загружает снимок по имени.
func (r *MongoSnapshotRepo) Load(ctx context.Context, name string) (*world.Snapshot, bool, error) {
	var doc mongoSnapshotDoc
	err := r.collection.FindOne(ctx, bson.M{"name": name}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("загрузка снимка %q из MongoDB: %w", name, err)
	}

	var snap world.Snapshot
	if err := json.Unmarshal(doc.Data, &snap); err != nil {
		return nil, false, fmt.Errorf("десериализация снимка %q: %w", name, err)
	}
	return &snap, true, nil
}

// Delete удаляет снимок.
func (r *MongoSnapshotRepo) Delete(ctx context.Context, name string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"name": name})
	if err != nil {
		return fmt.Errorf("удаление снимка %q из MongoDB: %w", name, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	return nil
}

// List возвращает метаданные всех снимков без тела данных.
func (r *MongoSnapshotRepo) List(ctx context.Context) ([]SnapshotInfo, error) {
	cursor, err := r.collection.Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"data": 0}))
	if err != nil {
		return nil, fmt.Errorf("листинг снимков MongoDB: %w", err)
	}
	defer cursor.Close(ctx)

	var infos []SnapshotInfo
	for cursor.Next(ctx) {
		var doc mongoSnapshotDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("декодирование документа листинга: %w", err)
		}
		infos = append(infos, SnapshotInfo{
			Name:      doc.Name,
			Entities:  doc.Entities,
			CreatedAt: doc.UpdatedAt,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("итерация листинга MongoDB: %w", err)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Close разрывает соединение с MongoDB.
func (r *MongoSnapshotRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.ctxTimeout)
	defer cancel()
	return r.client.Disconnect(ctx)
}
