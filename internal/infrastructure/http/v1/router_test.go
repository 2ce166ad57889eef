package v1

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "taxledger/internal/core/context"
	"taxledger/internal/core/id"
	"taxledger/internal/domain"
	"taxledger/internal/domain/dashboard"
	"taxledger/internal/domain/reminder"
	"taxledger/internal/infrastructure/http/v1/handlers"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var taxpayerID = id.New()

type tokenValidator struct{}

func (tokenValidator) ValidateToken(s string) (*appctx.UserContext, error) {
	switch s {
	case "admin":
		return &appctx.UserContext{UserID: id.New().String(), Username: "admin", Role: appctx.RoleAdmin}, nil
	case "taxpayer":
		return &appctx.UserContext{UserID: taxpayerID.String(), Username: "shop", Role: appctx.RoleTaxpayer}, nil
	}
	return nil, errors.New("invalid token")
}

type dashboardStub struct{}

func (dashboardStub) Get(context.Context) (*dashboard.Totals, error) {
	return &dashboard.Totals{ByStatus: map[string]int64{}}, nil
}

type reminderStub struct{ mineFor id.ID }

func (r *reminderStub) Create(context.Context, reminder.CreateInput) (*reminder.Reminder, error) {
	return &reminder.Reminder{}, nil
}

func (r *reminderStub) List(context.Context, reminder.Filter) (domain.ListResult[*reminder.Reminder], error) {
	return domain.ListResult[*reminder.Reminder]{Items: []*reminder.Reminder{}}, nil
}

func (r *reminderStub) ListForTaxpayer(_ context.Context, tp id.ID, _ reminder.Filter) (domain.ListResult[*reminder.Reminder], error) {
	r.mineFor = tp
	return domain.ListResult[*reminder.Reminder]{Items: []*reminder.Reminder{}}, nil
}

func TestRouter_AccessControl(t *testing.T) {
	reminders := &reminderStub{}
	router, err := NewRouter(RouterConfig{
		JWTValidator:     tokenValidator{},
		HealthInfo:       handlers.HealthInfo{App: "taxledger"},
		ReminderService:  reminders,
		DashboardService: dashboardStub{},
	})
	require.NoError(t, err)

	cases := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"public slabs", "/api/v1/tax/slabs", "", http.StatusOK},
		{"liveness", "/health/live", "", http.StatusOK},
		{"dashboard anonymous", "/api/v1/admin/dashboard", "", http.StatusUnauthorized},
		{"dashboard as taxpayer", "/api/v1/admin/dashboard", "taxpayer", http.StatusForbidden},
		{"dashboard as admin", "/api/v1/admin/dashboard", "admin", http.StatusOK},
		{"my reminders as admin", "/api/v1/me/reminders", "admin", http.StatusForbidden},
		{"my reminders as taxpayer", "/api/v1/me/reminders", "taxpayer", http.StatusOK},
		{"bad token", "/api/v1/me/reminders", "forged", http.StatusUnauthorized},
		{"unconfigured service", "/api/v1/admin/taxpayers", "admin", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
	assert.Equal(t, taxpayerID, reminders.mineFor)
}
