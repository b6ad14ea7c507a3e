// Package fleet registers vehicles and haulers for hauling businesses.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"farmnook-dispatch/internal/apperr"
	"farmnook-dispatch/internal/domain"
	"farmnook-dispatch/internal/store"
)

// MinPasswordLength is the shortest accepted hauler password.
const MinPasswordLength = 8

// VehicleInput is the admin form for a new vehicle.
type VehicleInput struct {
	BusinessID  string  `json:"businessId"`
	VehicleType string  `json:"vehicleType"`
	Model       string  `json:"model"`
	PlateNumber string  `json:"plateNumber"`
	MaxWeightKg float64 `json:"maxWeightKg"`
}

// HaulerInput is the admin form for a new hauler account.
type HaulerInput struct {
	FirstName       string `json:"firstName" validate:"required"`
	LastName        string `json:"lastName" validate:"required"`
	Phone           string `json:"phone" validate:"required,phone"`
	Email           string `json:"email" validate:"omitempty,email"`
	BusinessID      string `json:"businessId" validate:"required"`
	LicenseNo       string `json:"licenseNo" validate:"required,license"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// BcryptHasher hashes passwords with bcrypt.
type BcryptHasher struct {
	Cost int
}

// Hash returns the bcrypt hash of password.
func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Service validates and stores fleet records.
type Service struct {
	store            documentStore
	hasher           PasswordHasher
	operationTimeout time.Duration
	now              func() time.Time
}

// NewService creates a fleet Service.
func NewService(st documentStore, hasher PasswordHasher, timeout time.Duration) *Service {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Service{
		store:            st,
		hasher:           hasher,
		operationTimeout: timeout,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// normalizePlate upper-cases and collapses inner whitespace.
func normalizePlate(p string) string {
	return strings.ToUpper(strings.Join(strings.Fields(p), " "))
}

// CreateVehicle registers a vehicle under an existing business.
func (s *Service) CreateVehicle(ctx context.Context, in VehicleInput) (domain.Vehicle, error) {
	v := domain.Vehicle{
		BusinessID:  strings.TrimSpace(in.BusinessID),
		VehicleType: strings.TrimSpace(in.VehicleType),
		Model:       strings.TrimSpace(in.Model),
		PlateNumber: normalizePlate(in.PlateNumber),
		MaxWeightKg: in.MaxWeightKg,
		CreatedAt:   s.now(),
	}
	if err := domain.Struct(v); err != nil {
		return domain.Vehicle{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.requireBusiness(ctx, v.BusinessID); err != nil {
		return domain.Vehicle{}, err
	}

	dups, err := s.store.Query(ctx, store.Query{
		Collection: domain.CollectionVehicles,
		Where:      []store.Filter{store.Eq("plateNumber", v.PlateNumber)},
	})
	if err != nil {
		return domain.Vehicle{}, fmt.Errorf("check plate number: %w", err)
	}
	if len(dups) > 0 {
		return domain.Vehicle{}, fmt.Errorf("plate number %q is already registered: %w", v.PlateNumber, apperr.ErrConflict)
	}

	fields, err := store.Encode(v)
	if err != nil {
		return domain.Vehicle{}, fmt.Errorf("encode vehicle: %w", err)
	}
	id, err := s.store.Add(ctx, domain.CollectionVehicles, fields)
	if err != nil {
		return domain.Vehicle{}, fmt.Errorf("create vehicle: %w", err)
	}
	v.ID = id
	return v, nil
}

// CreateHauler registers a hauler account under an existing business. The
// password is stored only as a bcrypt hash.
func (s *Service) CreateHauler(ctx context.Context, in HaulerInput) (domain.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
	in.BusinessID = strings.TrimSpace(in.BusinessID)
	in.LicenseNo = strings.ToUpper(strings.TrimSpace(in.LicenseNo))
	if err := domain.Struct(in); err != nil {
		return domain.User{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.requireBusiness(ctx, in.BusinessID); err != nil {
		return domain.User{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	u := domain.User{
		UserType:     domain.UserHauler,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		Email:        in.Email,
		BusinessID:   in.BusinessID,
		LicenseNo:    in.LicenseNo,
		PasswordHash: hash,
		CreatedAt:    &now,
	}
	fields, err := store.Encode(u)
	if err != nil {
		return domain.User{}, fmt.Errorf("encode hauler: %w", err)
	}
	delete(fields, "id")

	id, err := s.store.Add(ctx, domain.CollectionUsers, fields)
	if err != nil {
		return domain.User{}, fmt.Errorf("create hauler: %w", err)
	}
	u.ID = id
	return u, nil
}

func (s *Service) requireBusiness(ctx context.Context, businessID string) error {
	doc, err := s.store.Get(ctx, domain.CollectionUsers, businessID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return domain.FieldErrors{"businessId": "does not exist"}
		}
		return fmt.Errorf("load business %q: %w", businessID, err)
	}
	var u domain.User
	if err := store.Decode(doc, &u); err != nil {
		return fmt.Errorf("decode business %q: %w", businessID, err)
	}
	if u.UserType != domain.UserBusiness {
		return domain.FieldErrors{"businessId": "is not a business"}
	}
	return nil
}
