package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/sync/errgroup"

	"carteira/internal/core"
	"carteira/internal/ledger"
)

const (
	TransactionsCollection  = "transactions"
	CategoriesCollection    = "categories"
	SubCategoriesCollection = "subcategories"
	BankAccountsCollection  = "bankAccounts"
	importLogCollection     = "importLog"
)

// DataStore is the subset of collection operations the repository uses.
// The single-document writes are promoted unchanged from *mongo.Collection.
type DataStore interface {
	FindAll(ctx context.Context, filter any, results any, opts ...*options.FindOptions) error
	FindOne(ctx context.Context, filter any, result any) error
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
	InsertOne(ctx context.Context, document any, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	ReplaceOne(ctx context.Context, filter any, replacement any, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
	UpdateMany(ctx context.Context, filter any, update any, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	DeleteMany(ctx context.Context, filter any, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

// CollectionProvider hands out collections of one database.
type CollectionProvider interface {
	Collection(name string) DataStore
	Ping(ctx context.Context) error
}

// MongoCollection adapts *mongo.Collection to DataStore.
type MongoCollection struct {
	*mongo.Collection
}

func (c *MongoCollection) FindAll(ctx context.Context, filter any, results any, opts ...*options.FindOptions) error {
	cur, err := c.Collection.Find(ctx, filter, opts...)
	if err != nil {
		return fmt.Errorf("find in %s: %w", c.Name(), err)
	}
	if err := cur.All(ctx, results); err != nil {
		return fmt.Errorf("decode %s: %w", c.Name(), err)
	}
	return nil
}

func (c *MongoCollection) FindOne(ctx context.Context, filter any, result any) error {
	return c.Collection.FindOne(ctx, filter).Decode(result)
}

func (c *MongoCollection) BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
	result, err := c.Collection.BulkWrite(ctx, models, opts...)
	if err != nil {
		return nil, fmt.Errorf("bulk write %s: %w", c.Name(), err)
	}
	return result, nil
}

func (c *MongoCollection) InsertOne(ctx context.Context, document any, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	result, err := c.Collection.InsertOne(ctx, document, opts...)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", c.Name(), err)
	}
	return result, nil
}

// MongoProvider adapts *mongo.Client to CollectionProvider.
type MongoProvider struct {
	client   *mongo.Client
	database string
}

func NewMongoProvider(client *mongo.Client, database string) *MongoProvider {
	return &MongoProvider{client: client, database: database}
}

func (p *MongoProvider) Collection(name string) DataStore {
	return &MongoCollection{p.client.Database(p.database).Collection(name)}
}

func (p *MongoProvider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx, readpref.Primary())
}

// ConnectToMongoDB connects and pings the server before returning.
func ConnectToMongoDB(ctx context.Context, uri string) (*mongo.Client, error) {
	slog.DebugContext(ctx, "Attempting to connect to MongoDB")

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	slog.InfoContext(ctx, "Successfully established connection to MongoDB")
	return client, nil
}

// Documents as stored in MongoDB.
type (
	transactionDoc struct {
		ID            string `bson:"_id"`
		Type          string `bson:"type"`
		AmountCents   int64  `bson:"amountCents"`
		CategoryID    string `bson:"categoryId,omitempty"`
		SubCategoryID string `bson:"subCategoryId,omitempty"`
		Date          string `bson:"date,omitempty"`
		Paid          bool   `bson:"paid"`
		Received      bool   `bson:"received"`
		BankAccountID string `bson:"bankAccountId,omitempty"`
		Observation   string `bson:"observation,omitempty"`
		AttachmentURL string `bson:"attachmentUrl,omitempty"`
	}

	categoryDoc struct {
		ID    string `bson:"_id"`
		Name  string `bson:"name"`
		Type  string `bson:"type"`
		Color string `bson:"color"`
	}

	subCategoryDoc struct {
		ID       string `bson:"_id"`
		Name     string `bson:"name"`
		ParentID string `bson:"parentId"`
		Type     string `bson:"type"`
	}

	bankAccountDoc struct {
		ID            string `bson:"_id"`
		BankName      string `bson:"bankName"`
		AccountNumber string `bson:"accountNumber"`
		Type          string `bson:"type"`
	}

	importLogDoc struct {
		Timestamp     time.Time `bson:"timestamp"`
		Transactions  int       `bson:"transactions"`
		Categories    int       `bson:"categories"`
		SubCategories int       `bson:"subcategories"`
		BankAccounts  int       `bson:"bankAccounts"`
	}
)

func toTransactionDoc(tx core.Transaction) transactionDoc {
	return transactionDoc{
		ID:            tx.ID,
		Type:          string(tx.Type),
		AmountCents:   tx.Amount.Cents,
		CategoryID:    tx.CategoryID,
		SubCategoryID: tx.SubCategoryID,
		Date:          tx.Date.String(),
		Paid:          tx.Paid,
		Received:      tx.Received,
		BankAccountID: tx.BankAccountID,
		Observation:   tx.Observation,
		AttachmentURL: tx.AttachmentURL,
	}
}

func (d transactionDoc) transaction() core.Transaction {
	tx := core.Transaction{
		ID:            d.ID,
		Type:          core.TransactionType(d.Type),
		Amount:        core.Money{Cents: d.AmountCents},
		CategoryID:    d.CategoryID,
		SubCategoryID: d.SubCategoryID,
		Paid:          d.Paid,
		Received:      d.Received,
		BankAccountID: d.BankAccountID,
		Observation:   d.Observation,
		AttachmentURL: d.AttachmentURL,
	}
	if date, err := core.ParseDate(d.Date); err == nil {
		tx.Date = date
	}
	return tx
}

var _ ledger.Store = (*MongoRepository)(nil)

// MongoRepository stores each collection of the dataset in its own MongoDB
// collection, keyed by the entity ID.
type MongoRepository struct {
	provider CollectionProvider
	now      func() time.Time
}

func NewMongoRepository(provider CollectionProvider) *MongoRepository {
	return &MongoRepository{provider: provider, now: time.Now}
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.provider.Ping(ctx)
}

func (r *MongoRepository) Dataset(ctx context.Context) (core.Dataset, error) {
	var (
		ds   core.Dataset
		txs  []transactionDoc
		cats []categoryDoc
		subs []subCategoryDoc
		bank []bankAccountDoc
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.provider.Collection(TransactionsCollection).FindAll(ctx, bson.D{}, &txs)
	})
	g.Go(func() error {
		return r.provider.Collection(CategoriesCollection).FindAll(ctx, bson.D{}, &cats)
	})
	g.Go(func() error {
		return r.provider.Collection(SubCategoriesCollection).FindAll(ctx, bson.D{}, &subs)
	})
	g.Go(func() error {
		return r.provider.Collection(BankAccountsCollection).FindAll(ctx, bson.D{}, &bank)
	})
	if err := g.Wait(); err != nil {
		return core.Dataset{}, err
	}

	for _, d := range txs {
		ds.Transactions = append(ds.Transactions, d.transaction())
	}
	for _, d := range cats {
		ds.Categories = append(ds.Categories, core.Category{ID: d.ID, Name: d.Name, Type: core.TransactionType(d.Type), Color: d.Color})
	}
	for _, d := range subs {
		ds.SubCategories = append(ds.SubCategories, core.SubCategory{ID: d.ID, Name: d.Name, ParentID: d.ParentID, Type: core.TransactionType(d.Type)})
	}
	for _, d := range bank {
		ds.BankAccounts = append(ds.BankAccounts, core.BankAccount{ID: d.ID, BankName: d.BankName, AccountNumber: d.AccountNumber, Type: core.AccountType(d.Type)})
	}
	return ds, nil
}

func (r *MongoRepository) AddTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if _, err := r.provider.Collection(TransactionsCollection).InsertOne(ctx, toTransactionDoc(tx)); err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Transaction saved to MongoDB",
		"id", tx.ID,
		"type", tx.Type,
		"amount_cents", tx.Amount.Cents)
	return tx.ID, nil
}

func (r *MongoRepository) Transaction(ctx context.Context, id string) (core.Transaction, error) {
	var doc transactionDoc
	err := r.provider.Collection(TransactionsCollection).FindOne(ctx, bson.M{"_id": id}, &doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("find transaction %s: %w", id, err)
	}
	return doc.transaction(), nil
}

// Import bulk upserts every collection by _id and records an entry in the
// import log.
func (r *MongoRepository) Import(ctx context.Context, ds core.Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}

	writes := map[string][]mongo.WriteModel{}
	for _, c := range ds.Categories {
		writes[CategoriesCollection] = append(writes[CategoriesCollection],
			replaceByID(c.ID, categoryDoc{ID: c.ID, Name: c.Name, Type: string(c.Type), Color: c.Color}))
	}
	for _, s := range ds.SubCategories {
		writes[SubCategoriesCollection] = append(writes[SubCategoriesCollection],
			replaceByID(s.ID, subCategoryDoc{ID: s.ID, Name: s.Name, ParentID: s.ParentID, Type: string(s.Type)}))
	}
	for _, b := range ds.BankAccounts {
		writes[BankAccountsCollection] = append(writes[BankAccountsCollection],
			replaceByID(b.ID, bankAccountDoc{ID: b.ID, BankName: b.BankName, AccountNumber: b.AccountNumber, Type: string(b.Type)}))
	}
	for _, tx := range ds.Transactions {
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		writes[TransactionsCollection] = append(writes[TransactionsCollection], replaceByID(tx.ID, toTransactionDoc(tx)))
	}

	// Taxonomy is written before transactions.
	for _, name := range []string{CategoriesCollection, SubCategoriesCollection, BankAccountsCollection, TransactionsCollection} {
		models := writes[name]
		if len(models) == 0 {
			continue
		}
		if _, err := r.provider.Collection(name).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
			return fmt.Errorf("import %s: %w", name, err)
		}
	}

	entry := importLogDoc{
		Timestamp:     r.now(),
		Transactions:  len(ds.Transactions),
		Categories:    len(ds.Categories),
		SubCategories: len(ds.SubCategories),
		BankAccounts:  len(ds.BankAccounts),
	}
	if _, err := r.provider.Collection(importLogCollection).InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("record import: %w", err)
	}
	return nil
}

func replaceByID(id string, doc any) mongo.WriteModel {
	return mongo.NewReplaceOneModel().SetFilter(bson.M{"_id": id}).SetReplacement(doc).SetUpsert(true)
}

func (r *MongoRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	res, err := r.provider.Collection(TransactionsCollection).ReplaceOne(ctx, bson.M{"_id": tx.ID}, toTransactionDoc(tx))
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", tx.ID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("transaction %s: %w", tx.ID, ledger.ErrNotFound)
	}
	return nil
}

func (r *MongoRepository) DeleteTransaction(ctx context.Context, id string) error {
	return r.deleteByID(ctx, TransactionsCollection, "transaction", id)
}

func (r *MongoRepository) SaveCategory(ctx context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return r.save(ctx, CategoriesCollection, c.ID, categoryDoc{ID: c.ID, Name: c.Name, Type: string(c.Type), Color: c.Color})
}

// DeleteCategory removes the category, then its subcategories and
// transactions. The cascade is not atomic; a failure leaves orphans that
// reports already tolerate.
func (r *MongoRepository) DeleteCategory(ctx context.Context, id string) error {
	if err := r.deleteByID(ctx, CategoriesCollection, "category", id); err != nil {
		return err
	}
	if _, err := r.provider.Collection(SubCategoriesCollection).DeleteMany(ctx, bson.M{"parentId": id}); err != nil {
		return fmt.Errorf("delete subcategories of %s: %w", id, err)
	}
	if _, err := r.provider.Collection(TransactionsCollection).DeleteMany(ctx, bson.M{"categoryId": id}); err != nil {
		return fmt.Errorf("delete transactions of %s: %w", id, err)
	}
	return nil
}

func (r *MongoRepository) SaveSubCategory(ctx context.Context, sc core.SubCategory) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	return r.save(ctx, SubCategoriesCollection, sc.ID, subCategoryDoc{ID: sc.ID, Name: sc.Name, ParentID: sc.ParentID, Type: string(sc.Type)})
}

func (r *MongoRepository) DeleteSubCategory(ctx context.Context, id string) error {
	if err := r.deleteByID(ctx, SubCategoriesCollection, "subcategory", id); err != nil {
		return err
	}
	_, err := r.provider.Collection(TransactionsCollection).UpdateMany(ctx,
		bson.M{"subCategoryId": id}, bson.M{"$unset": bson.M{"subCategoryId": ""}})
	if err != nil {
		return fmt.Errorf("clear subcategory %s: %w", id, err)
	}
	return nil
}

func (r *MongoRepository) SaveBankAccount(ctx context.Context, b core.BankAccount) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return r.save(ctx, BankAccountsCollection, b.ID, bankAccountDoc{ID: b.ID, BankName: b.BankName, AccountNumber: b.AccountNumber, Type: string(b.Type)})
}

func (r *MongoRepository) DeleteBankAccount(ctx context.Context, id string) error {
	return r.deleteByID(ctx, BankAccountsCollection, "bank account", id)
}

func (r *MongoRepository) save(ctx context.Context, collection, id string, doc any) error {
	_, err := r.provider.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save %s %s: %w", collection, id, err)
	}
	return nil
}

func (r *MongoRepository) deleteByID(ctx context.Context, collection, kind, id string) error {
	res, err := r.provider.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ledger.ErrNotFound)
	}
	return nil
}
