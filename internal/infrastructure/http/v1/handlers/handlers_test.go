package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxledger/internal/core/apperror"
	appctx "taxledger/internal/core/context"
	"taxledger/internal/core/id"
	"taxledger/internal/core/types"
	"taxledger/internal/domain"
	"taxledger/internal/domain/assessment"
	"taxledger/internal/domain/auth"
	"taxledger/internal/domain/dashboard"
	"taxledger/internal/domain/payment"
	"taxledger/internal/infrastructure/export"
	"taxledger/internal/infrastructure/http/v1/dto"
	"taxledger/internal/infrastructure/http/v1/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := dto.RegisterValidators(v); err != nil {
			panic(err)
		}
	}
}

// asUser puts a caller into the request context the way middleware.Auth does.
func asUser(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := appctx.WithUser(c.Request.Context(), &appctx.UserContext{UserID: userID, Role: role})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.Use(mw...)
	return r
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

// --- auth ---

type fakeAuth struct {
	role  string
	token string
}

func (f *fakeAuth) Login(_ context.Context, creds auth.Credentials, role string) (*auth.LoginResult, error) {
	f.role = role
	if creds.Password != "secret" {
		return nil, apperror.NewUnauthorized("invalid credentials")
	}
	u := auth.NewUser(creds.Username, "", role)
	return &auth.LoginResult{AccessToken: "jwt", TokenType: "Bearer", ExpiresAt: time.Now().Add(time.Hour), User: u}, nil
}

func (f *fakeAuth) Me(context.Context) (*auth.User, error) {
	return auth.NewUser("me", "", appctx.RoleTaxpayer), nil
}

func (f *fakeAuth) ChangePassword(context.Context, string, string) error { return nil }

func (f *fakeAuth) ForgotPassword(context.Context, string) (string, error) { return f.token, nil }

func (f *fakeAuth) ResetPassword(context.Context, string, string, string) error { return nil }

func authEngine(svc AuthService, expose bool) *gin.Engine {
	r := newEngine()
	h := NewAuthHandler(NewBaseHandler(), svc, expose)
	g := r.Group("/auth")
	h.RegisterRoutes(g, g.Group("", asUser(id.New().String(), appctx.RoleTaxpayer)))
	return r
}

func TestAuthHandler_LoginRoles(t *testing.T) {
	svc := &fakeAuth{}
	r := authEngine(svc, false)

	w := do(r, http.MethodPost, "/auth/admin/login", gin.H{"username": "root", "password": "secret"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, appctx.RoleAdmin, svc.role)
	body := decode(t, w)
	assert.Equal(t, "jwt", body["accessToken"])
	assert.Equal(t, "root", body["user"].(map[string]any)["username"])

	w = do(r, http.MethodPost, "/auth/login", gin.H{"username": "shop", "password": "secret"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, appctx.RoleTaxpayer, svc.role)

	w = do(r, http.MethodPost, "/auth/login", gin.H{"username": "shop", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/auth/login", gin.H{"username": "shop"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeValidation, decode(t, w)["code"])
}

func TestAuthHandler_ForgotPassword(t *testing.T) {
	svc := &fakeAuth{token: "raw-reset-token"}

	w := do(authEngine(svc, false), http.MethodPost, "/auth/forgot-password", gin.H{"username": "shop"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, forgotPasswordMessage, body["message"])
	assert.NotContains(t, body, "resetToken")

	w = do(authEngine(svc, true), http.MethodPost, "/auth/forgot-password", gin.H{"username": "shop"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "raw-reset-token", decode(t, w)["resetToken"])
}

func TestAuthHandler_ChangePasswordTooShort(t *testing.T) {
	w := do(authEngine(&fakeAuth{}, false), http.MethodPost, "/auth/change-password",
		gin.H{"currentPassword": "old", "newPassword": "abc"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := decode(t, w)["details"].(map[string]any)["fields"].(map[string]any)
	assert.Equal(t, "min", fields["NewPassword"])
}

// --- tax ---

func TestTaxHandler_Calculate(t *testing.T) {
	r := newEngine()
	h := NewTaxHandler(NewBaseHandler())
	h.now = func() time.Time { return time.Date(2025, time.November, 3, 10, 0, 0, 0, time.UTC) }
	h.RegisterRoutes(r.Group("/tax"))

	w := do(r, http.MethodGet, "/tax/calculate?income=50000", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "450", body["tax"])
	assert.Equal(t, "₹45,001 - ₹60,000", body["slabName"])
	assert.Equal(t, "2026-03-31", body["dueDate"])
	assert.Equal(t, "H2", body["period"])
	assert.Equal(t, "2025-26", body["financialYear"])

	w = do(r, http.MethodGet, "/tax/calculate?income=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/tax/calculate?income=-5", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/tax/slabs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 9)
}

// --- assessments ---

type fakeAssessments struct {
	created *assessment.CreateInput
	mineFor id.ID
}

func (f *fakeAssessments) Create(_ context.Context, in assessment.CreateInput) (*assessment.Assessment, error) {
	f.created = &in
	return &assessment.Assessment{ID: id.New(), TaxpayerID: in.TaxpayerID, FinancialYear: in.FinancialYear}, nil
}

func (f *fakeAssessments) Get(_ context.Context, assessmentID id.ID) (*assessment.Assessment, error) {
	return nil, apperror.NewNotFound("assessment", assessmentID)
}

func (f *fakeAssessments) List(context.Context, assessment.Filter) (domain.ListResult[*assessment.Assessment], error) {
	return domain.ListResult[*assessment.Assessment]{Items: []*assessment.Assessment{}}, nil
}

func (f *fakeAssessments) ListForTaxpayer(_ context.Context, taxpayerID id.ID, _ assessment.Filter) (domain.ListResult[*assessment.Assessment], error) {
	f.mineFor = taxpayerID
	return domain.ListResult[*assessment.Assessment]{Items: []*assessment.Assessment{}}, nil
}

func TestAssessmentHandler_Create(t *testing.T) {
	svc := &fakeAssessments{}
	r := newEngine()
	NewAssessmentHandler(NewBaseHandler(), svc, nil).RegisterRoutes(r.Group("/admin"), r.Group("/me"))

	taxpayerID := id.New()
	cases := []struct {
		name  string
		body  gin.H
		field string
	}{
		{"bad financial year", gin.H{"taxpayerId": taxpayerID.String(), "financialYear": "2025-27", "halfYearIncome": 50000}, "FinancialYear"},
		{"bad period", gin.H{"taxpayerId": taxpayerID.String(), "financialYear": "2025-26", "period": "H3"}, "Period"},
		{"bad taxpayer", gin.H{"taxpayerId": "nope", "financialYear": "2025-26"}, "TaxpayerID"},
		{"bad due date", gin.H{"taxpayerId": taxpayerID.String(), "financialYear": "2025-26", "dueDate": "31/03/2026"}, "DueDate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/admin/assessments", tc.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			fields := decode(t, w)["details"].(map[string]any)["fields"].(map[string]any)
			assert.Contains(t, fields, tc.field)
		})
	}
	assert.Nil(t, svc.created)

	w := do(r, http.MethodPost, "/admin/assessments", gin.H{
		"taxpayerId":     taxpayerID.String(),
		"financialYear":  "2025-26",
		"period":         "H2",
		"halfYearIncome": "50000",
		"dueDate":        "2026-03-31",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NotNil(t, svc.created)
	assert.Equal(t, taxpayerID, svc.created.TaxpayerID)
	require.NotNil(t, svc.created.DueDate)
	assert.Equal(t, "2026-03-31", svc.created.DueDate.Format(dto.DateLayout))
	assert.True(t, svc.created.HalfYearIncome.Equal(types.MustMoney("50000")))
}

func TestAssessmentHandler_GetAndMine(t *testing.T) {
	svc := &fakeAssessments{}
	me := id.New()
	r := newEngine()
	NewAssessmentHandler(NewBaseHandler(), svc, nil).
		RegisterRoutes(r.Group("/admin"), r.Group("/me", asUser(me.String(), appctx.RoleTaxpayer)))

	w := do(r, http.MethodGet, "/admin/assessments/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/admin/assessments/"+id.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/admin/assessments/"+id.New().String()+"/gateway-events", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "route absent without an event reader")

	w = do(r, http.MethodGet, "/me/assessments?status=Partially%20Paid", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, me, svc.mineFor)
}

// --- payments ---

type fakePayments struct {
	manual   *payment.ManualInput
	refunded types.Money
	mineFor  id.ID
	rows     []*payment.Payment
}

func samplePayment() *payment.Payment {
	gid := "pay_abc123"
	return &payment.Payment{
		ID:               id.New(),
		AssessmentID:     id.New(),
		TaxpayerID:       id.New(),
		Amount:           types.MustMoney("450"),
		Mode:             payment.ModeOnline,
		ReceiptNumber:    "RCP-2025-000001",
		GatewayPaymentID: &gid,
		RefundAmount:     types.Zero(),
		RefundStatus:     payment.RefundNone,
		PaidAt:           time.Date(2025, time.November, 3, 10, 0, 0, 0, time.UTC),
		TaxpayerName:     "Anil Kumar",
		FinancialYear:    "2025-26",
		Period:           "H2",
	}
}

func (f *fakePayments) RecordManual(_ context.Context, in payment.ManualInput) (*payment.Payment, error) {
	f.manual = &in
	p := samplePayment()
	p.Mode = in.Mode
	p.Amount = in.Amount
	return p, nil
}

func (f *fakePayments) CreateOrder(context.Context, id.ID) (*payment.OrderResult, error) {
	return nil, apperror.NewUnavailable("online payments are disabled")
}

func (f *fakePayments) VerifyOnline(context.Context, payment.VerifyInput) (*payment.Payment, error) {
	return nil, apperror.NewSignatureMismatch()
}

func (f *fakePayments) Refund(_ context.Context, _ id.ID, amount types.Money) (*payment.Payment, error) {
	f.refunded = amount
	return samplePayment(), nil
}

func (f *fakePayments) Get(context.Context, id.ID) (*payment.Payment, error) {
	return samplePayment(), nil
}

func (f *fakePayments) List(context.Context, payment.Filter) (domain.ListResult[*payment.Payment], error) {
	return domain.ListResult[*payment.Payment]{Items: f.rows, TotalCount: int64(len(f.rows))}, nil
}

func (f *fakePayments) ListForTaxpayer(_ context.Context, taxpayerID id.ID, _ payment.Filter) (domain.ListResult[*payment.Payment], error) {
	f.mineFor = taxpayerID
	return domain.ListResult[*payment.Payment]{Items: []*payment.Payment{}}, nil
}

func (f *fakePayments) Export(_ context.Context, _ payment.Filter, fn func(*payment.Payment) error) error {
	for _, p := range f.rows {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

func paymentEngine(svc PaymentService, me id.ID) *gin.Engine {
	r := newEngine()
	NewPaymentHandler(NewBaseHandler(), svc, export.DefaultIssuer).RegisterRoutes(PaymentRoutes{
		Admin:         r.Group("/admin"),
		Me:            r.Group("/me", asUser(me.String(), appctx.RoleTaxpayer)),
		Authenticated: r.Group(""),
	})
	return r
}

func TestPaymentHandler_RecordManual(t *testing.T) {
	svc := &fakePayments{}
	r := paymentEngine(svc, id.New())
	assessmentID := id.New()

	w := do(r, http.MethodPost, "/admin/payments/manual", gin.H{
		"assessmentId": assessmentID.String(), "amount": "450", "mode": "online",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := decode(t, w)["details"].(map[string]any)["fields"].(map[string]any)
	assert.Equal(t, "paymentmode", fields["Mode"])
	assert.Nil(t, svc.manual)

	w = do(r, http.MethodPost, "/admin/payments/manual", gin.H{
		"assessmentId": assessmentID.String(), "amount": "450", "mode": "cash", "note": "counter 2",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NotNil(t, svc.manual)
	assert.Equal(t, assessmentID, svc.manual.AssessmentID)
	assert.Equal(t, payment.ModeCash, svc.manual.Mode)
	assert.True(t, svc.manual.Amount.Equal(types.MustMoney("450")))
	assert.Equal(t, "cash", decode(t, w)["mode"])
}

func TestPaymentHandler_Refund(t *testing.T) {
	svc := &fakePayments{}
	r := paymentEngine(svc, id.New())

	w := do(r, http.MethodPost, "/admin/payments/"+id.New().String()+"/refund", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/admin/payments/"+id.New().String()+"/refund", gin.H{"amount": "100.50"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.refunded.Equal(types.MustMoney("100.50")))
}

func TestPaymentHandler_ExportAndReceipt(t *testing.T) {
	svc := &fakePayments{rows: []*payment.Payment{samplePayment(), samplePayment()}}
	r := paymentEngine(svc, id.New())

	w := do(r, http.MethodGet, "/admin/payments/export?mode=online", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.XLSXContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "payments_")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")

	w = do(r, http.MethodGet, "/admin/payments/export?from=2025-11-05&to=2025-11-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/payments/"+id.New().String()+"/receipt", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "RCP-2025-000001.pdf")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
}

func TestPaymentHandler_Online(t *testing.T) {
	me := id.New()
	svc := &fakePayments{}
	r := paymentEngine(svc, me)

	w := do(r, http.MethodPost, "/me/payments/order", gin.H{"assessmentId": id.New().String()})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(r, http.MethodPost, "/me/payments/verify", gin.H{
		"assessmentId":        id.New().String(),
		"razorpay_order_id":   "order_1",
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  "bad",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeSignatureMismatch, decode(t, w)["code"])

	w = do(r, http.MethodGet, "/me/payments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, me, svc.mineFor)
}

// --- dashboard ---

type dashboardFunc func(context.Context) (*dashboard.Totals, error)

func (f dashboardFunc) Get(ctx context.Context) (*dashboard.Totals, error) { return f(ctx) }

func TestDashboardHandler(t *testing.T) {
	ok := dashboardFunc(func(context.Context) (*dashboard.Totals, error) {
		return &dashboard.Totals{TotalAssessed: types.MustMoney("900"), TotalTaxpayers: 2}, nil
	})
	r := newEngine()
	NewDashboardHandler(NewBaseHandler(), ok).RegisterRoutes(r.Group("/admin"))

	w := do(r, http.MethodGet, "/admin/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "900", body["totalAssessed"])
	assert.EqualValues(t, 2, body["totalTaxpayers"])

	failing := dashboardFunc(func(context.Context) (*dashboard.Totals, error) {
		return nil, errors.New("db down")
	})
	r = newEngine()
	NewDashboardHandler(NewBaseHandler(), failing).RegisterRoutes(r.Group("/admin"))
	w = do(r, http.MethodGet, "/admin/dashboard", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

// --- health ---

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	r := newEngine()
	NewHealthHandler(nil, HealthInfo{App: "taxledger", Version: "test"}, map[string]Pinger{
		"redis": pingFunc(func(context.Context) error { return errors.New("connection refused") }),
		"none":  nil,
	}).RegisterRoutes(r.Group("/health"))

	w := do(r, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "error", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Len(t, checks, 1)
	assert.True(t, strings.HasPrefix(checks["redis"].(string), "unhealthy"))

	w = do(r, http.MethodGet, "/health/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "taxledger", decode(t, w)["app"])
}
