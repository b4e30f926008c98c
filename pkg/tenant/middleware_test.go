package tenant

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubValidator struct {
	valid map[string]bool
	err   error
}

func (s stubValidator) ValidateTenant(_ context.Context, tenantID string) (bool, error) {
	return s.valid[tenantID], s.err
}

func TestTenantMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name      string
		header    string
		validator stubValidator
		want      int
	}{
		{"missing header", "", stubValidator{}, http.StatusBadRequest},
		{"unknown tenant", "t-9", stubValidator{valid: map[string]bool{}}, http.StatusForbidden},
		{"validator failure", "t-1", stubValidator{err: errors.New("db fora")}, http.StatusInternalServerError},
		{"active tenant", "t-1", stubValidator{valid: map[string]bool{"t-1": true}}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fromGin, fromCtx string
			r := gin.New()
			r.Use(TenantMiddleware(tt.validator))
			r.GET("/ping", func(c *gin.Context) {
				fromGin = GetTenantID(c)
				fromCtx = TenantIDFromContext(c.Request.Context())
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.header != "" {
				req.Header.Set(HeaderName, tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, tt.header, fromGin)
				assert.Equal(t, tt.header, fromCtx)
			}
		})
	}
}

func TestGetTenantID_FallsBackToRequestContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, GetTenantID(c))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request = req.WithContext(WithTenantID(req.Context(), "t-7"))
	assert.Equal(t, "t-7", GetTenantID(c))

	c.Set(ginKey, "t-1")
	assert.Equal(t, "t-1", GetTenantID(c))
	assert.Empty(t, TenantIDFromContext(context.Background()))
}
