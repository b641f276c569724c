package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
	"github.com/noah-isme/sma-supervision-api/pkg/logger"
)

type stubResolver struct {
	session *models.Session
	err     error
}

func (s stubResolver) ValidateToken(token string) (*models.SessionClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return &models.SessionClaims{UserID: "u1", School: "North High"}, nil
}

func (s stubResolver) SessionFor(*models.SessionClaims) (*models.Session, error) {
	return s.session, s.err
}

type recordingObserver struct {
	path   string
	status int
}

func (r *recordingObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	r.path = path
	r.status = status
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(resolver sessionResolver, perms ...models.Permission) *gin.Engine {
	r := gin.New()
	r.GET("/things", JWT(resolver), RequirePermission(perms...), func(c *gin.Context) {
		sess, _ := SessionFrom(c)
		c.String(http.StatusOK, sess.UserID()+"|"+c.GetString(logger.SchoolKey))
	})
	return r
}

func serve(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/things", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWTResolvesSession(t *testing.T) {
	sess := &models.Session{User: &models.User{ID: "u1", Permissions: []models.Permission{models.PermViewTasks}}, SelectedSchool: "North High"}
	rec := serve(newRouter(stubResolver{session: sess}, models.PermViewTasks), "Bearer good")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1|North High", rec.Body.String())
}

func TestJWTRejectsMissingOrBadTokens(t *testing.T) {
	r := newRouter(stubResolver{})
	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Token good").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Bearer bad").Code)
}

func TestJWTRejectsRevokedUser(t *testing.T) {
	r := newRouter(stubResolver{err: appErrors.Clone(appErrors.ErrUnauthorized, "user no longer exists")})
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Bearer good").Code)
}

func TestRequirePermissionForbids(t *testing.T) {
	sess := &models.Session{User: &models.User{ID: "u1", Permissions: []models.Permission{models.PermViewTasks}}, SelectedSchool: "North High"}
	rec := serve(newRouter(stubResolver{session: sess}, models.PermManageUsers), "Bearer good")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := &models.Session{User: &models.User{ID: "admin", Permissions: []models.Permission{models.PermissionAll}}, SelectedSchool: "North High"}
	rec = serve(newRouter(stubResolver{session: admin}, models.PermManageUsers), "Bearer good")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	observer := &recordingObserver{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/teachers/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/teachers/t1", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "/teachers/:id", observer.path)
	assert.Equal(t, http.StatusNoContent, observer.status)
}

func TestResponseMeta(t *testing.T) {
	var meta map[string]interface{}
	r := gin.New()
	r.Use(WithResponseMeta())
	r.GET("/", func(c *gin.Context) {
		SetCacheHit(c, true)
		SetRevision(c, 7)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotNil(t, meta)
	assert.Equal(t, true, meta[cacheHitKey])
	assert.Equal(t, uint64(7), meta[revisionKey])
	assert.Contains(t, meta, "processing_time_ms")
}


func TestAuditLogsOnlySuccess(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.POST("/users/:id", Audit(zap.New(core), "update", "user"), func(c *gin.Context) {
		if c.Param("id") == "bad" {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/users/u1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/users/bad", nil))

	entries := logs.FilterMessage("audit").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "u1", entries[0].ContextMap()["resource_id"])
	assert.Equal(t, "user", entries[0].ContextMap()["resource"])
}
