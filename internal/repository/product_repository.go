package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/iliyamo/shop-auth-api/internal/model"
)

const (
	ProductsCollection       = "products"
	ProductDetailsCollection = "productdetails"
)

// ProductStore is the read side of the catalog.
type ProductStore interface {
	List(ctx context.Context, f model.ProductFilter) ([]model.Product, error)
	FindByID(ctx context.Context, productID string) (*model.Product, error)
}

// ProductRepo reads products joined with their details document.
type ProductRepo struct {
	Products *mongo.Collection
}

func NewProductRepo(db *mongo.Database) *ProductRepo {
	return &ProductRepo{Products: db.Collection(ProductsCollection)}
}

// joinDetails resolves the productDetails reference into an embedded
// document.
func joinDetails() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: ProductDetailsCollection},
			{Key: "localField", Value: "productDetails"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "productDetails"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$productDetails"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
	}
}

var productProjection = bson.D{{Key: "$project", Value: bson.D{
	{Key: "_id", Value: 0},
	{Key: "__v", Value: 0},
	{Key: "productDetails._id", Value: 0},
	{Key: "productDetails.__v", Value: 0},
}}}

// List returns every product matching f.
func (r *ProductRepo) List(ctx context.Context, f model.ProductFilter) ([]model.Product, error) {
	pipeline := joinDetails()
	match := bson.D{}
	if f.Category != "" {
		match = append(match, bson.E{Key: "productDetails.productCategory", Value: f.Category})
	}
	if f.MinAvailability != nil {
		match = append(match, bson.E{Key: "productDetails.productAvailability", Value: bson.D{{Key: "$gte", Value: *f.MinAvailability}}})
	}
	if len(match) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
	}
	pipeline = append(pipeline, productProjection)

	cur, err := r.Products.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate products: %w", err)
	}
	out := []model.Product{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return out, nil
}

// FindByID returns the product with the given productId.
func (r *ProductRepo) FindByID(ctx context.Context, productID string) (*model.Product, error) {
	pipeline := append(mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "productId", Value: productID}}}},
		{{Key: "$limit", Value: 1}},
	}, joinDetails()...)
	pipeline = append(pipeline, productProjection)

	cur, err := r.Products.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate product: %w", err)
	}
	var out []model.Product
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}
