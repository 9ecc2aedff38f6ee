package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/entryledger/internal/domain"
	"github.com/iho/entryledger/internal/infrastructure/auth"
)

func TestAuthenticate(t *testing.T) {
	mgr := auth.NewJWTManager("test-secret", time.Hour)
	token, err := mgr.Generate(domain.Principal{Subject: "ops-1", Role: domain.RoleOperator})
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid token", header: "Bearer " + token, wantStatus: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + token, wantStatus: http.StatusOK},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "no token", header: "Bearer", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not.a.jwt", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got domain.Principal
			h := Authenticate(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = PrincipalFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "ops-1", got.Subject)
				assert.Equal(t, domain.RoleOperator, got.Role)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		principal  *domain.Principal
		required   domain.Role
		wantStatus int
	}{
		{name: "no principal", required: domain.RoleViewer, wantStatus: http.StatusUnauthorized},
		{name: "viewer reads", principal: &domain.Principal{Subject: "v", Role: domain.RoleViewer}, required: domain.RoleViewer, wantStatus: http.StatusOK},
		{name: "viewer cannot move money", principal: &domain.Principal{Subject: "v", Role: domain.RoleViewer}, required: domain.RoleOperator, wantStatus: http.StatusForbidden},
		{name: "operator cannot freeze", principal: &domain.Principal{Subject: "o", Role: domain.RoleOperator}, required: domain.RoleAdmin, wantStatus: http.StatusForbidden},
		{name: "admin does everything", principal: &domain.Principal{Subject: "a", Role: domain.RoleAdmin}, required: domain.RoleOperator, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RequireRole(tt.required)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", nil)
			if tt.principal != nil {
				req = req.WithContext(WithPrincipal(req.Context(), *tt.principal))
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}
