package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ganeshai/ganesh-ai/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret"

func setupAuthDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:auth_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	return db
}

func signToken(t *testing.T, userID uint) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": float64(userID)})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func newAuthRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	authed := router.Group("/", AuthMiddleware(db, testSecret))
	authed.GET("/me", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	admin := authed.Group("/admin", AdminMiddleware())
	admin.GET("/earnings", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func doGet(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	db := setupAuthDB(t)
	router := newAuthRouter(db)

	w := doGet(router, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareBlockedUserForbidden(t *testing.T) {
	db := setupAuthDB(t)
	user := &models.User{Username: "mallory", Email: "mallory@example.com", ReferralCode: "ref_mallory", IsBlocked: true}
	require.NoError(t, db.Create(user).Error)
	router := newAuthRouter(db)

	w := doGet(router, "/me", signToken(t, user.ID))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)
	assert.Contains(t, w.Body.String(), "Account is blocked")
}

func TestAdminMiddlewareRejectsNonAdmin(t *testing.T) {
	db := setupAuthDB(t)
	user := &models.User{Username: "nina", Email: "nina@example.com", ReferralCode: "ref_nina"}
	require.NoError(t, db.Create(user).Error)
	router := newAuthRouter(db)

	w := doGet(router, "/admin/earnings", signToken(t, user.ID))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)
	assert.Contains(t, w.Body.String(), "Admin access required")
}

func TestAdminMiddlewareAllowsAdmin(t *testing.T) {
	db := setupAuthDB(t)
	user := &models.User{Username: "oscar", Email: "oscar@example.com", ReferralCode: "ref_oscar", IsAdmin: true}
	require.NoError(t, db.Create(user).Error)
	router := newAuthRouter(db)

	w := doGet(router, "/admin/earnings", signToken(t, user.ID))
	assert.Equal(t, http.StatusOK, w.Code)
}
