package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmnook-dispatch/internal/apperr"
	"farmnook-dispatch/internal/domain"
	"farmnook-dispatch/internal/logx"
	"farmnook-dispatch/internal/service/fleet"
)

func TestFleetHandler_CreateVehicle(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	f := &stubFleet{
		vehicleFn: func(_ context.Context, in fleet.VehicleInput) (domain.Vehicle, error) {
			require.Equal(t, "B1", in.BusinessID)
			require.Equal(t, "abc 123", in.PlateNumber)
			return domain.Vehicle{
				ID: "V1", BusinessID: in.BusinessID, VehicleType: in.VehicleType,
				Model: in.Model, PlateNumber: "ABC 123", MaxWeightKg: in.MaxWeightKg, CreatedAt: created,
			}, nil
		},
	}
	body := `{"businessId":"B1","vehicleType":"truck","model":"Isuzu Elf","plateNumber":"abc 123","maxWeightKg":3500}`
	rr := httptest.NewRecorder()
	NewFleetHandler(logx.Nop(), f).CreateVehicle(rr, httptest.NewRequest(http.MethodPost, "/vehicles", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.JSONEq(t, `{
		"id":"V1","businessId":"B1","vehicleType":"truck","model":"Isuzu Elf",
		"plateNumber":"ABC 123","maxWeightKg":3500,"label":"Isuzu Elf (ABC 123)",
		"createdAt":"2025-01-02T03:04:05Z"
	}`, rr.Body.String())
}

func TestFleetHandler_CreateVehicle_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		code int
		body string
	}{
		{"validation", domain.FieldErrors{"plateNumber": "is invalid"}, http.StatusBadRequest,
			`{"error":"invalid input","fields":{"plateNumber":"is invalid"}}`},
		{"duplicate plate", apperr.ErrConflict, http.StatusConflict, `{"error":"plate number already registered"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := &stubFleet{vehicleFn: func(context.Context, fleet.VehicleInput) (domain.Vehicle, error) {
				return domain.Vehicle{}, tt.err
			}}
			rr := httptest.NewRecorder()
			NewFleetHandler(logx.Nop(), f).CreateVehicle(rr, httptest.NewRequest(http.MethodPost, "/vehicles", strings.NewReader(`{}`)))

			assert.Equal(t, tt.code, rr.Code)
			assert.JSONEq(t, tt.body, rr.Body.String())
		})
	}
}

func TestFleetHandler_CreateHauler_OmitsPasswordHash(t *testing.T) {
	t.Parallel()

	f := &stubFleet{
		haulerFn: func(_ context.Context, in fleet.HaulerInput) (domain.User, error) {
			require.Equal(t, "secret123", in.Password)
			return domain.User{
				ID: "H1", UserType: domain.UserHauler, FirstName: in.FirstName, LastName: in.LastName,
				Phone: in.Phone, BusinessID: in.BusinessID, LicenseNo: "N01-23-456789",
				PasswordHash: "$2a$10$hash",
			}, nil
		},
	}
	body := `{"firstName":"Ben","lastName":"Reyes","phone":"09171234567","businessId":"B1",
		"licenseNo":"n01-23-456789","password":"secret123","confirmPassword":"secret123"}`
	rr := httptest.NewRecorder()
	NewFleetHandler(logx.Nop(), f).CreateHauler(rr, httptest.NewRequest(http.MethodPost, "/haulers", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.NotContains(t, rr.Body.String(), "hash")
	assert.JSONEq(t, `{
		"id":"H1","userType":"hauler","firstName":"Ben","lastName":"Reyes",
		"phone":"09171234567","businessId":"B1","licenseNo":"N01-23-456789"
	}`, rr.Body.String())
}
