package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testKey = "test-key"

func TestIssueAndParse(t *testing.T) {
	tok, err := Issue("7", RoleAdmin, "qrattend", testKey, time.Minute)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Minute), tok.ExpiresAt, 2*time.Second)

	claims, err := Parse(tok.Value, testKey, "qrattend")
	require.NoError(t, err)
	require.Equal(t, "7", claims.Subject)
	require.Equal(t, RoleAdmin, claims.Role)
}

func TestParseRejects(t *testing.T) {
	tok, err := Issue("7", RoleStudent, "qrattend", testKey, time.Minute)
	require.NoError(t, err)

	_, err = Parse(tok.Value, "other-key", "qrattend")
	require.Error(t, err)

	_, err = Parse(tok.Value, testKey, "someone-else")
	require.Error(t, err)

	expired, err := Issue("7", RoleStudent, "qrattend", testKey, -time.Minute)
	require.NoError(t, err)
	_, err = Parse(expired.Value, testKey, "qrattend")
	require.ErrorIs(t, err, jwt.ErrTokenExpired)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: RoleAdmin}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = Parse(none, testKey, "")
	require.Error(t, err)
}

func TestIssueRequiresSubjectAndKey(t *testing.T) {
	_, err := Issue("", RoleAdmin, "", testKey, time.Minute)
	require.Error(t, err)
	_, err = Issue("1", RoleAdmin, "", "", time.Minute)
	require.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/any", Bearer(testKey, "qrattend"), func(c *gin.Context) {
		claims, _ := FromContext(c)
		c.String(http.StatusOK, claims.Subject)
	})
	r.GET("/admin", Bearer(testKey, "qrattend"), RequireRole(RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	admin, err := Issue("1", RoleAdmin, "qrattend", testKey, time.Minute)
	require.NoError(t, err)
	student, err := Issue("2", RoleStudent, "qrattend", testKey, time.Minute)
	require.NoError(t, err)

	cases := []struct {
		name, path, header string
		want               int
	}{
		{"no header", "/any", "", http.StatusUnauthorized},
		{"not bearer", "/any", "Basic abc", http.StatusUnauthorized},
		{"garbage", "/any", "Bearer abc", http.StatusUnauthorized},
		{"student any", "/any", "Bearer " + student.Value, http.StatusOK},
		{"student admin", "/admin", "Bearer " + student.Value, http.StatusForbidden},
		{"admin admin", "/admin", "bearer " + admin.Value, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			require.Equal(t, tc.want, rec.Code)
		})
	}
}
