package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/harvestfield/farmlink-backend/pkg/db"
	"github.com/harvestfield/farmlink-backend/pkg/db/models"
	"github.com/harvestfield/farmlink-backend/pkg/enums"
	pkgerrors "github.com/harvestfield/farmlink-backend/pkg/errors"
	"github.com/harvestfield/farmlink-backend/pkg/pagination"
)

// Service exposes catalog operations.
type Service interface {
	Create(ctx context.Context, farmID uuid.UUID, input CreateProductInput) (*ProductDTO, error)
	Update(ctx context.Context, id uuid.UUID, actorFarmID *uuid.UUID, isAdmin bool, input UpdateProductInput) (*ProductDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]ProductDTO, string, error)
	ListOwn(ctx context.Context, farmID uuid.UUID) ([]ProductDTO, error)
}

type productRepository interface {
	Create(ctx context.Context, product *models.Product) (*models.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindActiveWithFarm(ctx context.Context, id uuid.UUID) (*ProductWithFarm, error)
	Save(ctx context.Context, product *models.Product) (*models.Product, error)
	ListActive(ctx context.Context, filter ListFilter, params pagination.Params) ([]ProductWithFarm, string, error)
	ListByFarm(ctx context.Context, farmID uuid.UUID) ([]models.Product, error)
}

type service struct {
	repo productRepository
}

// NewService builds a product service.
func NewService(repo productRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, farmID uuid.UUID, input CreateProductInput) (*ProductDTO, error) {
	if farmID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "farm id is required")
	}
	unit, err := enums.ParseProductUnit(input.Unit)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product unit")
	}
	weight, err := parseWeight(input.UnitWeightKG)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		FarmID:       farmID,
		SKU:          strings.TrimSpace(input.SKU),
		Title:        strings.TrimSpace(input.Title),
		Category:     strings.TrimSpace(input.Category),
		Unit:         unit,
		UnitWeightKG: weight,
		PriceCents:   input.PriceCents,
		SeasonTags:   input.SeasonTags,
		IsActive:     true,
	}
	if desc := strings.TrimSpace(input.Description); desc != "" {
		product.Description = &desc
	}

	created, err := s.repo.Create(ctx, product)
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "products_farm_id_sku_key") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "sku already exists for this farm")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	dto := toDTO(created, "")
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, actorFarmID *uuid.UUID, isAdmin bool, input UpdateProductInput) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !isAdmin && (actorFarmID == nil || *actorFarmID != product.FarmID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot modify another farm's product")
	}

	if input.Title != nil {
		product.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		product.Description = input.Description
	}
	if input.Category != nil {
		product.Category = strings.TrimSpace(*input.Category)
	}
	if input.Unit != nil {
		unit, err := enums.ParseProductUnit(*input.Unit)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product unit")
		}
		product.Unit = unit
	}
	if input.UnitWeightKG != nil {
		weight, err := parseWeight(*input.UnitWeightKG)
		if err != nil {
			return nil, err
		}
		product.UnitWeightKG = weight
	}
	if input.PriceCents != nil {
		product.PriceCents = *input.PriceCents
	}
	if input.SeasonTags != nil {
		product.SeasonTags = *input.SeasonTags
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}

	saved, err := s.repo.Save(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save product")
	}
	dto := toDTO(saved, "")
	return &dto, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	row, err := s.repo.FindActiveWithFarm(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	dto := toDTO(&row.Product, row.FarmName)
	return &dto, nil
}

func (s *service) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]ProductDTO, string, error) {
	rows, next, err := s.repo.ListActive(ctx, filter, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toDTO(&rows[i].Product, rows[i].FarmName))
	}
	return out, next, nil
}

func (s *service) ListOwn(ctx context.Context, farmID uuid.UUID) ([]ProductDTO, error) {
	if farmID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "farm id is required")
	}
	rows, err := s.repo.ListByFarm(ctx, farmID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list farm products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toDTO(&rows[i], ""))
	}
	return out, nil
}

func parseWeight(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, nil
	}
	weight, err := decimal.NewFromString(trimmed)
	if err != nil || weight.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "invalid unit weight")
	}
	return weight, nil
}

func toDTO(product *models.Product, farmName string) ProductDTO {
	dto := ProductDTO{
		ID:           product.ID,
		FarmID:       product.FarmID,
		FarmName:     farmName,
		SKU:          product.SKU,
		Title:        product.Title,
		Category:     product.Category,
		Unit:         product.Unit,
		UnitWeightKG: product.UnitWeightKG,
		PriceCents:   product.PriceCents,
		SeasonTags:   append([]string{}, product.SeasonTags...),
		IsActive:     product.IsActive,
	}
	if product.Description != nil {
		dto.Description = *product.Description
	}
	return dto
}
