package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	appErrors "github.com/trinity-shop/trinity-platform/internal/errors"
	"github.com/trinity-shop/trinity-platform/internal/models"
	"github.com/trinity-shop/trinity-platform/internal/repositories"
)

type ProductService interface {
	CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, req *models.UpdateProductRequest) (*models.Product, error)
	ListProducts(ctx context.Context, page, size int) ([]*models.Product, int, error)
}

type productService struct {
	productRepo repository.ProductRepository
}

func NewProductService(productRepo repository.ProductRepository) ProductService {
	return &productService{productRepo: productRepo}
}

func (s *productService) CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error) {
	product := &models.Product{
		ID:          uuid.New(),
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		SKU:         req.SKU,
		Status:      "active",
	}

	if err := s.productRepo.CreateProduct(ctx, product); err != nil {
		return nil, appErrors.DatabaseError("Failed to create product").WithError(err)
	}

	return product, nil
}

func (s *productService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.productRepo.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFoundError("Product not found")
		}

		return nil, appErrors.DatabaseError("Failed to fetch product").WithError(err)
	}

	return product, nil
}

func (s *productService) UpdateProduct(ctx context.Context, id uuid.UUID, req *models.UpdateProductRequest) (*models.Product, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.CategoryID != nil {
		product.CategoryID = *req.CategoryID
	}
	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.Status != nil {
		product.Status = *req.Status
	}

	if err := s.productRepo.UpdateProduct(ctx, product); err != nil {
		return nil, appErrors.DatabaseError("Failed to update product").WithError(err)
	}

	return product, nil
}

func (s *productService) ListProducts(ctx context.Context, page, size int) ([]*models.Product, int, error) {
	if page < 1 {
		page = 1
	}

	if size < 1 || size > 100 {
		size = 20
	}

	products, total, err := s.productRepo.ListProducts(ctx, page, size)
	if err != nil {
		return nil, 0, appErrors.DatabaseError("Failed to list products").WithError(err)
	}

	return products, total, nil
}
