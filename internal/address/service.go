package address

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/exclusivemerch/store-backend/pkg/db/models"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var zipcodeRe = regexp.MustCompile(`^[0-9]{6}$`)

type repository interface {
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Address, error)
	Upsert(ctx context.Context, addr *models.Address) error
}

type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Address, error)
	Save(ctx context.Context, userID uuid.UUID, input SaveInput) (*models.Address, error)
}

// SaveInput is the delivery address payload.
type SaveInput struct {
	House   string `json:"house" validate:"required,max=200"`
	Area    string `json:"area" validate:"required,max=200"`
	City    string `json:"city" validate:"required,max=100"`
	State   string `json:"state" validate:"required,max=100"`
	Zipcode string `json:"zipcode" validate:"required,zipcode"`
}

type service struct {
	repo repository
}

func NewService(repo repository) (Service, error) {
	if repo == nil {
		return nil, errors.New("address repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*models.Address, error) {
	addr, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no saved address")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load address")
	}
	return addr, nil
}

func (s *service) Save(ctx context.Context, userID uuid.UUID, input SaveInput) (*models.Address, error) {
	addr := &models.Address{
		UserID:  userID,
		House:   strings.TrimSpace(input.House),
		Area:    strings.TrimSpace(input.Area),
		City:    strings.TrimSpace(input.City),
		State:   strings.TrimSpace(input.State),
		Zipcode: strings.TrimSpace(input.Zipcode),
	}

	missing := []string{}
	for _, f := range []struct{ name, value string }{
		{"house", addr.House}, {"area", addr.Area}, {"city", addr.City}, {"state", addr.State},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address fields are required").
			WithDetails(map[string]any{"missing": missing})
	}
	if !zipcodeRe.MatchString(addr.Zipcode) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "zipcode must be 6 digits")
	}

	if err := s.repo.Upsert(ctx, addr); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save address")
	}
	return addr, nil
}
