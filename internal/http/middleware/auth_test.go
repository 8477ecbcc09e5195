package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"lpr-service/internal/auth"
	"lpr-service/internal/model"
)

func signedToken(t *testing.T, role string) string {
	t.Helper()
	claims := auth.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestAuthAndRequireOperator(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/op", Auth(auth.NewParser("secret")), RequireOperator(), func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, string(p.Role))
	})

	tests := []struct {
		name   string
		header string
		want   int
		body   string
	}{
		{name: "missing header", want: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "bad signature", header: "Bearer " + signedToken(t, "admin") + "x", want: http.StatusUnauthorized},
		{name: "viewer", header: "Bearer " + signedToken(t, "viewer"), want: http.StatusForbidden},
		{name: "operator", header: "Bearer " + signedToken(t, "operator"), want: http.StatusOK, body: string(model.UserRoleOperator)},
		{name: "admin", header: "Bearer " + signedToken(t, "Admin"), want: http.StatusOK, body: string(model.UserRoleAdmin)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/op", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.body != "" && w.Body.String() != tt.body {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.body)
			}
		})
	}
}
