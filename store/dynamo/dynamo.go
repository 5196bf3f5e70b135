// Package dynamo implements store.Connection over Amazon DynamoDB.
//
// Each collection maps to a table named TablePrefix + collection, keyed by a
// single string partition key (Config.KeyAttribute) holding the document id.
// Queries scan the table with a server-side filter expression; ordering and
// limits are applied to the filtered result.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jacentio/trove/clause"
	"github.com/jacentio/trove/document"
	"github.com/jacentio/trove/store"
)

// MaxTransactItems is the DynamoDB limit on items in one TransactWriteItems call.
const MaxTransactItems = 100

// ErrReservedAttribute is returned when document data contains the key attribute.
var ErrReservedAttribute = errors.New("trove: document data uses the table key attribute")

// API is the subset of the DynamoDB client used by Conn.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Conn is a store.Connection backed by DynamoDB.
type Conn struct {
	client API
	config Config
	newID  func() string
	logger *zap.Logger
}

// Option configures a Conn.
type Option func(*Conn)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Conn) {
		c.logger = logger
	}
}

// WithIDGenerator replaces the random id generator used by NewDoc.
func WithIDGenerator(fn func() string) Option {
	return func(c *Conn) {
		c.newID = fn
	}
}

// New creates a Conn. Tables must already exist.
func New(client API, config Config, opts ...Option) *Conn {
	config.validate()
	c := &Conn{
		client: client,
		config: config,
		newID:  uuid.NewString,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collection returns the named collection.
func (c *Conn) Collection(name string) store.CollectionRef {
	return &collection{query: query{conn: c, collection: name}}
}

// Batch starts a transactional write batch.
func (c *Conn) Batch() store.WriteBatch {
	return &batch{conn: c}
}

// MaxBatchWrites implements store.BatchLimiter.
func (c *Conn) MaxBatchWrites() int {
	return MaxTransactItems
}

// TableName returns the table backing a collection.
func (c *Conn) TableName(collection string) string {
	return c.config.TablePrefix + collection
}

func (c *Conn) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		c.config.KeyAttribute: &types.AttributeValueMemberS{Value: id},
	}
}

func (c *Conn) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.OperationTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.config.OperationTimeout)
}

// marshalItem converts document data into a table item keyed by id.
func (c *Conn) marshalItem(id string, data document.Fields) (map[string]types.AttributeValue, error) {
	if _, ok := data[c.config.KeyAttribute]; ok {
		return nil, fmt.Errorf("%w: %q", ErrReservedAttribute, c.config.KeyAttribute)
	}
	item, err := attributevalue.MarshalMap(map[string]any(data))
	if err != nil {
		return nil, fmt.Errorf("marshal item: %w", err)
	}
	if item == nil {
		item = map[string]types.AttributeValue{}
	}
	item[c.config.KeyAttribute] = &types.AttributeValueMemberS{Value: id}
	return item, nil
}

// unmarshalItem converts a table item into a snapshot, dropping the key
// attribute from the data.
func (c *Conn) unmarshalItem(raw map[string]types.AttributeValue) (store.Snapshot, error) {
	snap := store.Snapshot{Exists: true}
	if v, ok := raw[c.config.KeyAttribute].(*types.AttributeValueMemberS); ok {
		snap.ID = v.Value
	}

	var data map[string]any
	if err := attributevalue.UnmarshalMap(raw, &data); err != nil {
		return store.Snapshot{}, fmt.Errorf("unmarshal item %q: %w", snap.ID, err)
	}
	delete(data, c.config.KeyAttribute)
	snap.Data = document.Fields(data)
	if snap.Data == nil {
		snap.Data = document.Fields{}
	}
	return snap, nil
}

type collection struct {
	query
}

func (c *collection) Name() string { return c.collection }

func (c *collection) Doc(id string) store.DocRef {
	return &docRef{conn: c.conn, collection: c.collection, id: id}
}

func (c *collection) NewDoc() store.DocRef {
	return c.Doc(c.conn.newID())
}

type docRef struct {
	conn       *Conn
	collection string
	id         string
}

func (r *docRef) ID() string { return r.id }

func (r *docRef) table() *string {
	return aws.String(r.conn.TableName(r.collection))
}

// Set creates or replaces the item.
func (r *docRef) Set(ctx context.Context, data document.Fields) error {
	item, err := r.conn.marshalItem(r.id, data)
	if err != nil {
		return err
	}

	opCtx, cancel := r.conn.withOperationTimeout(ctx)
	defer cancel()
	_, err = r.conn.client.PutItem(opCtx, &dynamodb.PutItemInput{
		TableName: r.table(),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", r.collection, r.id, err)
	}
	return nil
}

// Update sets the top-level attributes of data on an existing item.
func (r *docRef) Update(ctx context.Context, data document.Fields) error {
	if len(data) == 0 {
		snap, err := r.Get(ctx)
		if err != nil {
			return err
		}
		if !snap.Exists {
			return fmt.Errorf("%s/%s: %w", r.collection, r.id, store.ErrNotFound)
		}
		return nil
	}
	if _, ok := data[r.conn.config.KeyAttribute]; ok {
		return fmt.Errorf("%w: %q", ErrReservedAttribute, r.conn.config.KeyAttribute)
	}

	attrs := make([]string, 0, len(data))
	for k := range data {
		attrs = append(attrs, k)
	}
	sort.Strings(attrs)

	var setClauses []string
	exprNames := map[string]string{"#key": r.conn.config.KeyAttribute}
	exprValues := map[string]types.AttributeValue{}
	for i, k := range attrs {
		av, err := attributevalue.Marshal(data[k])
		if err != nil {
			return fmt.Errorf("marshal %s: %w", k, err)
		}
		nameKey := fmt.Sprintf("#attr%d", i)
		valueKey := fmt.Sprintf(":val%d", i)
		exprNames[nameKey] = k
		exprValues[valueKey] = av
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", nameKey, valueKey))
	}

	opCtx, cancel := r.conn.withOperationTimeout(ctx)
	defer cancel()
	_, err := r.conn.client.UpdateItem(opCtx, &dynamodb.UpdateItemInput{
		TableName:                 r.table(),
		Key:                       r.conn.key(r.id),
		UpdateExpression:          aws.String("SET " + joinStrings(setClauses, ", ")),
		ConditionExpression:       aws.String("attribute_exists(#key)"),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%s/%s: %w", r.collection, r.id, store.ErrNotFound)
		}
		return fmt.Errorf("update %s/%s: %w", r.collection, r.id, err)
	}
	return nil
}

// Delete removes the item. Deleting a missing item succeeds.
func (r *docRef) Delete(ctx context.Context) error {
	opCtx, cancel := r.conn.withOperationTimeout(ctx)
	defer cancel()
	_, err := r.conn.client.DeleteItem(opCtx, &dynamodb.DeleteItemInput{
		TableName: r.table(),
		Key:       r.conn.key(r.id),
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", r.collection, r.id, err)
	}
	return nil
}

// Get reads the item.
func (r *docRef) Get(ctx context.Context) (store.Snapshot, error) {
	opCtx, cancel := r.conn.withOperationTimeout(ctx)
	defer cancel()
	result, err := r.conn.client.GetItem(opCtx, &dynamodb.GetItemInput{
		TableName:      r.table(),
		Key:            r.conn.key(r.id),
		ConsistentRead: aws.Bool(r.conn.config.ConsistentRead),
	})
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("get %s/%s: %w", r.collection, r.id, err)
	}
	if result.Item == nil {
		return store.Snapshot{ID: r.id}, nil
	}

	snap, err := r.conn.unmarshalItem(result.Item)
	if err != nil {
		return store.Snapshot{}, err
	}
	snap.ID = r.id
	return snap, nil
}

type query struct {
	conn       *Conn
	collection string
	preds      []clause.Predicate
	order      *clause.Order
	limit      int
}

func (q query) Where(path string, op clause.Operator, v any) store.Query {
	preds := make([]clause.Predicate, len(q.preds), len(q.preds)+1)
	copy(preds, q.preds)
	q.preds = append(preds, clause.Predicate{Path: path, Operator: op, Value: v})
	return q
}

func (q query) OrderBy(path string, dir clause.Direction) store.Query {
	q.order = &clause.Order{Path: path, Direction: dir}
	return q
}

func (q query) Limit(n int) store.Query {
	q.limit = n
	return q
}

// scanInput builds the Scan request for the query.
func (q query) scanInput() (*dynamodb.ScanInput, error) {
	filter, err := buildFilter(q.preds, q.order)
	if err != nil {
		return nil, err
	}

	input := &dynamodb.ScanInput{
		TableName:      aws.String(q.conn.TableName(q.collection)),
		ConsistentRead: aws.Bool(q.conn.config.ConsistentRead),
	}
	if !filter.empty() {
		input.FilterExpression = aws.String(filter.String())
		input.ExpressionAttributeNames = filter.names
		if len(filter.values) > 0 {
			input.ExpressionAttributeValues = filter.values
		}
	}
	return input, nil
}

// Documents scans the table, then orders and limits the matches.
func (q query) Documents(ctx context.Context) ([]store.Snapshot, error) {
	input, err := q.scanInput()
	if err != nil {
		return nil, err
	}

	opCtx, cancel := q.conn.withOperationTimeout(ctx)
	defer cancel()

	var snaps []store.Snapshot
	paginator := dynamodb.NewScanPaginator(q.conn.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(opCtx)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.collection, err)
		}
		for _, raw := range page.Items {
			snap, err := q.conn.unmarshalItem(raw)
			if err != nil {
				return nil, err
			}
			snaps = append(snaps, snap)
		}
	}

	store.Sort(snaps, q.order)
	if q.limit > 0 && len(snaps) > q.limit {
		snaps = snaps[:q.limit]
	}

	q.conn.logger.Debug("dynamodb scan",
		zap.String("table", aws.ToString(input.TableName)),
		zap.String("filter", aws.ToString(input.FilterExpression)),
		zap.Int("results", len(snaps)),
	)
	return snaps, nil
}

type write struct {
	ref  store.DocRef
	data document.Fields
}

type batch struct {
	conn      *Conn
	writes    []write
	committed bool
}

func (b *batch) Set(ref store.DocRef, data document.Fields) {
	b.writes = append(b.writes, write{ref: ref, data: data})
}

func (b *batch) Len() int { return len(b.writes) }

// Commit writes every staged item in a single TransactWriteItems call.
func (b *batch) Commit(ctx context.Context) error {
	if b.committed {
		return fmt.Errorf("dynamodb batch: already committed")
	}
	if len(b.writes) == 0 {
		b.committed = true
		return nil
	}
	if len(b.writes) > MaxTransactItems {
		return fmt.Errorf("dynamodb batch of %d writes: %w", len(b.writes), store.ErrBatchTooLarge)
	}

	items := make([]types.TransactWriteItem, 0, len(b.writes))
	for i, w := range b.writes {
		ref, ok := w.ref.(*docRef)
		if !ok || ref.conn != b.conn {
			return fmt.Errorf("dynamodb batch write %d: %w", i, store.ErrForeignRef)
		}
		item, err := b.conn.marshalItem(ref.id, w.data)
		if err != nil {
			return fmt.Errorf("dynamodb batch write %d: %w", i, err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: ref.table(),
				Item:      item,
			},
		})
	}

	opCtx, cancel := b.conn.withOperationTimeout(ctx)
	defer cancel()
	_, err := b.conn.client.TransactWriteItems(opCtx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		return fmt.Errorf("dynamodb batch: %w", err)
	}
	b.committed = true
	return nil
}
