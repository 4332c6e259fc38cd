package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/harvestfield/farmlink-backend/internal/availability"
	"github.com/harvestfield/farmlink-backend/internal/auth"
	"github.com/harvestfield/farmlink-backend/internal/cart"
	"github.com/harvestfield/farmlink-backend/internal/checkout"
	"github.com/harvestfield/farmlink-backend/internal/delivery"
	"github.com/harvestfield/farmlink-backend/internal/farms"
	"github.com/harvestfield/farmlink-backend/internal/orders"
	"github.com/harvestfield/farmlink-backend/internal/products"
	"github.com/harvestfield/farmlink-backend/internal/schedule"
	pkgAuth "github.com/harvestfield/farmlink-backend/pkg/auth"
	"github.com/harvestfield/farmlink-backend/pkg/auth/session"
	"github.com/harvestfield/farmlink-backend/pkg/config"
	"github.com/harvestfield/farmlink-backend/pkg/db/models"
	"github.com/harvestfield/farmlink-backend/pkg/enums"
	"github.com/harvestfield/farmlink-backend/pkg/logger"
	"github.com/harvestfield/farmlink-backend/pkg/pagination"
	"github.com/harvestfield/farmlink-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSessionChecker struct{}

func (stubSessionChecker) HasSession(context.Context, string) (bool, error) {
	return true, nil
}

type stubAuthService struct{}

func (stubAuthService) Register(context.Context, auth.RegisterRequest) (*auth.AuthResponse, error) {
	panic("unimplemented")
}

func (stubAuthService) Login(context.Context, auth.LoginRequest) (*auth.AuthResponse, error) {
	panic("unimplemented")
}

func (stubAuthService) Refresh(context.Context, auth.RefreshRequest) (*auth.AuthResponse, error) {
	panic("unimplemented")
}

func (stubAuthService) Logout(context.Context, string) error {
	return nil
}

type stubFarmService struct{}

func (stubFarmService) Create(context.Context, uuid.UUID, farms.CreateFarmInput) (*farms.FarmDTO, error) {
	panic("unimplemented")
}

func (stubFarmService) Get(context.Context, uuid.UUID) (*farms.FarmDTO, error) {
	panic("unimplemented")
}

func (stubFarmService) Update(context.Context, uuid.UUID, *uuid.UUID, bool, farms.UpdateFarmInput) (*farms.FarmDTO, error) {
	panic("unimplemented")
}

func (stubFarmService) List(context.Context, pagination.Params) ([]farms.FarmDTO, string, error) {
	return nil, "", nil
}

type stubProductService struct{}

func (stubProductService) Create(context.Context, uuid.UUID, products.CreateProductInput) (*products.ProductDTO, error) {
	panic("unimplemented")
}

func (stubProductService) Update(context.Context, uuid.UUID, *uuid.UUID, bool, products.UpdateProductInput) (*products.ProductDTO, error) {
	panic("unimplemented")
}

func (stubProductService) Get(context.Context, uuid.UUID) (*products.ProductDTO, error) {
	panic("unimplemented")
}

func (stubProductService) List(context.Context, products.ListFilter, pagination.Params) ([]products.ProductDTO, string, error) {
	return nil, "", nil
}

func (stubProductService) ListOwn(context.Context, uuid.UUID) ([]products.ProductDTO, error) {
	return nil, nil
}

type stubCartService struct{}

func (stubCartService) Upsert(context.Context, uuid.UUID, cart.UpsertCartInput) (*models.CartRecord, error) {
	panic("unimplemented")
}

func (stubCartService) GetActive(context.Context, uuid.UUID) (*models.CartRecord, error) {
	return &models.CartRecord{Status: enums.CartStatusActive}, nil
}

func (stubCartService) Lines(*models.CartRecord) []delivery.CartLine {
	return nil
}

type stubScheduleService struct{}

func (stubScheduleService) ListMonth(context.Context, string) ([]schedule.DayDTO, error) {
	return nil, nil
}

func (stubScheduleService) ScheduleRange(context.Context, time.Time, time.Time) (delivery.Schedule, error) {
	return delivery.Schedule{}, nil
}

func (stubScheduleService) UpsertDays(context.Context, schedule.UpsertScheduleInput) ([]schedule.DayDTO, error) {
	panic("unimplemented")
}

type stubAvailabilityService struct{}

func (stubAvailabilityService) Bulk(context.Context, []uuid.UUID, time.Time, time.Time) (delivery.AvailabilityMap, error) {
	panic("unimplemented")
}

func (stubAvailabilityService) Snapshot(context.Context, []uuid.UUID, time.Time) (delivery.DayAvailability, error) {
	panic("unimplemented")
}

func (stubAvailabilityService) UpsertOwn(context.Context, uuid.UUID, availability.UpsertInput) error {
	return nil
}

type stubCheckoutService struct{}

func (stubCheckoutService) Submit(context.Context, uuid.UUID, checkout.SubmitInput) (*orders.OrderDTO, error) {
	panic("unimplemented")
}

func (stubCheckoutService) Resolve(context.Context, uuid.UUID, checkout.ResolveInput) (*checkout.Resolution, error) {
	panic("unimplemented")
}

func (stubCheckoutService) Consolidate(context.Context, uuid.UUID, checkout.ConsolidateInput) (*checkout.ConsolidationResult, error) {
	panic("unimplemented")
}

func (stubCheckoutService) Calendar(context.Context, uuid.UUID, string) (*checkout.CalendarView, error) {
	return &checkout.CalendarView{Days: map[string]delivery.DayState{}}, nil
}

type stubOrdersService struct{}

func (stubOrdersService) ListMine(context.Context, uuid.UUID, pagination.Params) (*orders.OrderPage, error) {
	return &orders.OrderPage{}, nil
}

func (stubOrdersService) GetMine(context.Context, uuid.UUID, uuid.UUID) (*orders.OrderDTO, error) {
	panic("unimplemented")
}

func (stubOrdersService) ListAdmin(context.Context, orders.AdminListInput) (*orders.OrderPage, error) {
	return &orders.OrderPage{}, nil
}

func (stubOrdersService) Cancel(context.Context, uuid.UUID, uuid.UUID) (*orders.OrderDTO, error) {
	panic("unimplemented")
}

func (stubOrdersService) UpdateStatus(context.Context, uuid.UUID, string) (*orders.OrderDTO, error) {
	panic("unimplemented")
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:                 "secret",
			Issuer:                 "issuer",
			ExpirationMinutes:      60,
			RefreshTokenTTLMinutes: 120,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		(*redis.Client)(nil),
		nil,
		stubSessionChecker{},
		Services{
			Auth:         stubAuthService{},
			Farms:        stubFarmService{},
			Products:     stubProductService{},
			Cart:         stubCartService{},
			Schedule:     stubScheduleService{},
			Availability: stubAvailabilityService{},
			Checkout:     stubCheckoutService{},
			Orders:       stubOrdersService{},
		},
	)
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole, farmID *uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		FarmID: farmID,
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthEndpointsAnswerWithoutAuth(t *testing.T) {
	router := newTestRouter(testConfig())

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s got %d", path, resp.Code)
		}
	}
}

func TestPublicCatalogNeedsNoToken(t *testing.T) {
	router := newTestRouter(testConfig())

	for _, path := range []string{"/api/v1/products", "/api/v1/farms", "/api/v1/delivery/schedule"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s got %d", path, resp.Code)
		}
	}
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestPrivateGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleBuyer, nil))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for cart fetch got %d", resp.Code)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	buyer := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil)
	buyer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleBuyer, nil))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, buyer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleAdmin, nil))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestFarmerRoutesRequireFarmerRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	buyer := httptest.NewRequest(http.MethodGet, "/api/v1/farms/me/products", nil)
	buyer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleBuyer, nil))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, buyer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-farmer got %d", resp.Code)
	}

	farmID := uuid.New()
	farmer := httptest.NewRequest(http.MethodGet, "/api/v1/farms/me/products", nil)
	farmer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleFarmer, &farmID))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, farmer)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for farmer catalog got %d", resp.Code)
	}
}

func TestDeliveryCalendarIsAuthed(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	anon := httptest.NewRequest(http.MethodGet, "/api/v1/delivery/calendar?month=2026-09", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, anon)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}

	buyer := httptest.NewRequest(http.MethodGet, "/api/v1/delivery/calendar?month=2026-09", nil)
	buyer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleBuyer, nil))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, buyer)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for calendar got %d", resp.Code)
	}
}
