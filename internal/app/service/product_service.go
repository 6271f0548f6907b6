package service

import (
	"context"
	"errors"

	"github.com/mercadito/storefront-backend/internal/app/model"
	"github.com/mercadito/storefront-backend/internal/app/repository"
	"github.com/mercadito/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

const (
	defaultProductPageSize = 20
	maxProductPageSize     = 100
)

type ProductListOptions struct {
	Search  string
	InStock bool
	Limit   int
	Offset  int
}

type ProductPage struct {
	Products []model.Product `json:"products"`
	Total    int64           `json:"total"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}

// ProductService backs the product cards the cart is filled from.
type ProductService interface {
	ListProducts(ctx context.Context, opts ProductListOptions) (*ProductPage, error)
	GetProductByID(ctx context.Context, id uint) (*model.Product, error)
}

type productService struct {
	productRepo repository.ProductRepository
	images      ImageResolver
}

func NewProductService(productRepo repository.ProductRepository, images ImageResolver) ProductService {
	return &productService{productRepo: productRepo, images: images}
}

func (s *productService) ListProducts(ctx context.Context, opts ProductListOptions) (*ProductPage, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultProductPageSize
	}
	if limit > maxProductPageSize {
		limit = maxProductPageSize
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	products, total, err := s.productRepo.FindWithFilter(ctx, repository.ProductFilter{
		Search:  opts.Search,
		InStock: opts.InStock,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		logger.Error("Failed to list products", err, map[string]interface{}{
			"search": opts.Search,
		})
		return nil, err
	}

	for i := range products {
		s.resolveImage(ctx, &products[i])
	}
	if products == nil {
		products = []model.Product{}
	}

	return &ProductPage{Products: products, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *productService) GetProductByID(ctx context.Context, id uint) (*model.Product, error) {
	if id == 0 {
		return nil, ErrInvalidProductID
	}

	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	s.resolveImage(ctx, product)
	return product, nil
}

func (s *productService) resolveImage(ctx context.Context, product *model.Product) {
	if s.images == nil || product.ImageURL == "" {
		return
	}
	url, err := s.images.ResolveImageURL(ctx, product.ImageURL)
	if err != nil {
		logger.Warn("Failed to resolve product image", map[string]interface{}{
			"product_id": product.ID,
			"error":      err.Error(),
		})
		return
	}
	product.ImageURL = url
}
