package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/hatlonely/entmap/search"
)

// MongoExecutorOptions MongoDB 连接选项
type MongoExecutorOptions struct {
	URI         string        `cfg:"uri"`
	Host        string        `cfg:"host" def:"localhost"`
	Port        int           `cfg:"port" def:"27017"`
	Database    string        `cfg:"database"`
	Username    string        `cfg:"username"`
	Password    string        `cfg:"password"`
	AuthSource  string        `cfg:"authSource" def:"admin"`
	Timeout     time.Duration `cfg:"timeout" def:"30s"`
	MaxPoolSize uint64        `cfg:"maxPoolSize" def:"100"`
	MinPoolSize uint64        `cfg:"minPoolSize" def:"0"`
}

// MongoExecutor 表名对应集合名，条件翻译为 bson 过滤器
type MongoExecutor struct {
	client   *mongo.Client
	database *mongo.Database
}

func NewMongoExecutorWithOptions(opts *MongoExecutorOptions) (*MongoExecutor, error) {
	uri := opts.URI
	if uri == "" {
		if opts.Username != "" && opts.Password != "" {
			uri = fmt.Sprintf("mongodb://%s:%s@%s:%d/%s?authSource=%s",
				opts.Username, opts.Password, opts.Host, opts.Port, opts.Database, opts.AuthSource)
		} else {
			uri = fmt.Sprintf("mongodb://%s:%d/%s", opts.Host, opts.Port, opts.Database)
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	if opts.MaxPoolSize > 0 {
		clientOptions.SetMaxPoolSize(opts.MaxPoolSize)
	}
	clientOptions.SetMinPoolSize(opts.MinPoolSize)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, errors.Wrap(err, "mongo.Connect failed")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "mongo ping failed")
	}

	return NewMongoExecutor(client.Database(opts.Database)), nil
}

func NewMongoExecutor(database *mongo.Database) *MongoExecutor {
	return &MongoExecutor{client: database.Client(), database: database}
}

func (e *MongoExecutor) Close() error {
	return e.client.Disconnect(context.Background())
}

func mongoFilter(criteria *search.Criteria) (string, bson.M, error) {
	table, err := tableOf(criteria)
	if err != nil {
		return "", nil, err
	}
	filter, err := criteria.Filter().ToMongo()
	if err != nil {
		return "", nil, errors.WithMessage(err, "translate criteria failed")
	}
	return table, bson.M(filter), nil
}

// mongoFindOptions 排序、分页和投影
func mongoFindOptions(criteria *search.Criteria) (*options.FindOptions, error) {
	findOptions := options.Find()
	if order := criteria.Order(); order != nil {
		direction := 1
		if !order.Ascending() {
			direction = -1
		}
		findOptions.SetSort(bson.D{{Key: order.Field(), Value: direction}})
	}
	findOptions.SetSkip(int64(criteria.FirstResult()))
	findOptions.SetLimit(int64(criteria.MaxResults()))

	cols, err := columns(criteria)
	if err != nil {
		return nil, err
	}
	if cols != nil {
		projection := bson.D{}
		for _, col := range cols {
			projection = append(projection, bson.E{Key: col, Value: 1})
		}
		findOptions.SetProjection(projection)
	}
	return findOptions, nil
}

func (e *MongoExecutor) Find(ctx context.Context, criteria *search.Criteria) (*search.ResultPage[Record], error) {
	table, filter, err := mongoFilter(criteria)
	if err != nil {
		return nil, err
	}
	findOptions, err := mongoFindOptions(criteria)
	if err != nil {
		return nil, err
	}

	collection := e.database.Collection(table)
	cursor, err := collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, errors.Wrapf(err, "find %s failed", table)
	}
	defer cursor.Close(ctx)

	records := make([]Record, 0, criteria.MaxResults())
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "cursor.Decode failed")
		}
		records = append(records, Record(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, errors.Wrap(err, "cursor.Err")
	}

	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, errors.Wrapf(err, "count %s failed", table)
	}
	return search.NewResultPage(total, records), nil
}

func (e *MongoExecutor) Count(ctx context.Context, criteria *search.Criteria) (int64, error) {
	table, filter, err := mongoFilter(criteria)
	if err != nil {
		return 0, err
	}
	total, err := e.database.Collection(table).CountDocuments(ctx, filter)
	if err != nil {
		return 0, errors.Wrapf(err, "count %s failed", table)
	}
	return total, nil
}

// mongoReplacement 按 id 列替换整个文档
func mongoReplacement(def search.Definition, record Record) (string, bson.M, bson.M, error) {
	table, id, _, err := prepareUpsert(def, record)
	if err != nil {
		return "", nil, nil, err
	}
	doc := make(bson.M, len(record))
	for k, v := range record {
		doc[k] = v
	}
	doc[def.IdentifierField()] = id
	return table, bson.M{def.IdentifierField(): id}, doc, nil
}

func (e *MongoExecutor) Upsert(ctx context.Context, def search.Definition, record Record) error {
	table, filter, doc, err := mongoReplacement(def, record)
	if err != nil {
		return err
	}
	if _, err := e.database.Collection(table).ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true)); err != nil {
		return errors.Wrapf(err, "replace %s failed", table)
	}
	return nil
}

func (e *MongoExecutor) Remove(ctx context.Context, def search.Definition, id int64) error {
	table, err := tableOfDefinition(def)
	if err != nil {
		return err
	}
	if _, err := e.database.Collection(table).DeleteOne(ctx, bson.M{def.IdentifierField(): id}); err != nil {
		return errors.Wrapf(err, "delete %s %d failed", table, id)
	}
	return nil
}
