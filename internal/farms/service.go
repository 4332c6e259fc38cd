package farms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harvestfield/farmlink-backend/pkg/db/models"
	pkgerrors "github.com/harvestfield/farmlink-backend/pkg/errors"
	"github.com/harvestfield/farmlink-backend/pkg/pagination"
)

// Service exposes producer profile operations.
type Service interface {
	Create(ctx context.Context, ownerID uuid.UUID, input CreateFarmInput) (*FarmDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*FarmDTO, error)
	Update(ctx context.Context, id uuid.UUID, actorFarmID *uuid.UUID, isAdmin bool, input UpdateFarmInput) (*FarmDTO, error)
	List(ctx context.Context, params pagination.Params) ([]FarmDTO, string, error)
}

type farmRepository interface {
	Create(ctx context.Context, farm *models.Farm) (*models.Farm, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Farm, error)
	Save(ctx context.Context, farm *models.Farm) (*models.Farm, error)
	ListActive(ctx context.Context, params pagination.Params) ([]models.Farm, string, error)
}

type ownerLinker interface {
	AttachFarm(ctx context.Context, userID, farmID uuid.UUID) error
}

type service struct {
	repo   farmRepository
	owners ownerLinker
}

// NewService builds a farm service backed by the provided repositories.
func NewService(repo farmRepository, owners ownerLinker) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("farm repository required")
	}
	if owners == nil {
		return nil, fmt.Errorf("owner linker required")
	}
	return &service{repo: repo, owners: owners}, nil
}

func (s *service) Create(ctx context.Context, ownerID uuid.UUID, input CreateFarmInput) (*FarmDTO, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}

	farm := &models.Farm{
		Name:           strings.TrimSpace(input.Name),
		Region:         strings.TrimSpace(input.Region),
		ContactEmail:   strings.TrimSpace(input.ContactEmail),
		Certifications: input.Certifications,
		IsActive:       true,
	}
	if desc := strings.TrimSpace(input.Description); desc != "" {
		farm.Description = &desc
	}
	if phone := strings.TrimSpace(input.ContactPhone); phone != "" {
		farm.ContactPhone = &phone
	}

	created, err := s.repo.Create(ctx, farm)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create farm")
	}
	if err := s.owners.AttachFarm(ctx, ownerID, created.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link owner")
	}

	dto := toDTO(created)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*FarmDTO, error) {
	farm, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "farm not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load farm")
	}
	dto := toDTO(farm)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, actorFarmID *uuid.UUID, isAdmin bool, input UpdateFarmInput) (*FarmDTO, error) {
	if !isAdmin && (actorFarmID == nil || *actorFarmID != id) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot modify another farm")
	}

	farm, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "farm not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load farm")
	}

	if input.Name != nil {
		farm.Name = strings.TrimSpace(*input.Name)
	}
	if input.Region != nil {
		farm.Region = strings.TrimSpace(*input.Region)
	}
	if input.Description != nil {
		farm.Description = input.Description
	}
	if input.ContactEmail != nil {
		farm.ContactEmail = strings.TrimSpace(*input.ContactEmail)
	}
	if input.ContactPhone != nil {
		farm.ContactPhone = input.ContactPhone
	}
	if input.Certifications != nil {
		farm.Certifications = *input.Certifications
	}
	if input.IsActive != nil {
		if !isAdmin {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins change farm status")
		}
		farm.IsActive = *input.IsActive
	}

	saved, err := s.repo.Save(ctx, farm)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save farm")
	}
	dto := toDTO(saved)
	return &dto, nil
}

func (s *service) List(ctx context.Context, params pagination.Params) ([]FarmDTO, string, error) {
	farms, next, err := s.repo.ListActive(ctx, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list farms")
	}
	out := make([]FarmDTO, 0, len(farms))
	for i := range farms {
		out = append(out, toDTO(&farms[i]))
	}
	return out, next, nil
}

func toDTO(farm *models.Farm) FarmDTO {
	dto := FarmDTO{
		ID:             farm.ID,
		Name:           farm.Name,
		Region:         farm.Region,
		ContactEmail:   farm.ContactEmail,
		Certifications: append([]string{}, farm.Certifications...),
		IsActive:       farm.IsActive,
	}
	if farm.Description != nil {
		dto.Description = *farm.Description
	}
	if farm.ContactPhone != nil {
		dto.ContactPhone = *farm.ContactPhone
	}
	return dto
}
