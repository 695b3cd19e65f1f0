package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthRequired(testSecret), func(c *gin.Context) {
		v, _ := c.Get(UserIDKey)
		c.String(http.StatusOK, "%v", v)
	})
	return r
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestAuthRequiredAcceptsValidToken(t *testing.T) {
	r := newAuthRouter()

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	if w.Body.String() != "user-42" {
		t.Fatalf("expected subject in context, got %q", w.Body.String())
	}
}

func TestAuthRequiredRejects(t *testing.T) {
	r := newAuthRouter()

	cases := []struct {
		name  string
		setup func(req *http.Request)
	}{
		{"missing header", func(req *http.Request) {}},
		{"wrong scheme", func(req *http.Request) {
			req.Header.Set("Authorization", "Basic abc")
		}},
		{"bad signature", func(req *http.Request) {
			token := signToken(t, "other-secret", jwt.MapClaims{"sub": "user-42"})
			req.Header.Set("Authorization", "Bearer "+token)
		}},
		{"expired", func(req *http.Request) {
			token := signToken(t, testSecret, jwt.MapClaims{
				"sub": "user-42",
				"exp": time.Now().Add(-time.Hour).Unix(),
			})
			req.Header.Set("Authorization", "Bearer "+token)
		}},
		{"missing subject", func(req *http.Request) {
			token := signToken(t, testSecret, jwt.MapClaims{
				"exp": time.Now().Add(time.Hour).Unix(),
			})
			req.Header.Set("Authorization", "Bearer "+token)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tc.setup(req)
			r.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", w.Code)
			}
		})
	}
}
