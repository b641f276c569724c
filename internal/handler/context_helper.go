package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-supervision-api/internal/middleware"
	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
	"github.com/noah-isme/sma-supervision-api/pkg/response"
)

// sessionFromContext returns the session resolved by the auth middleware, or nil.
func sessionFromContext(c *gin.Context) *models.Session {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		return nil
	}
	return sess
}

// bindJSON decodes the body into dest and writes a validation error on failure.
func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

// reportFilterFromQuery reads from/to/evaluationType/teacherId/subject/grade.
// teacherId may repeat or hold a comma separated list.
func reportFilterFromQuery(c *gin.Context) models.ReportFilter {
	filter := models.ReportFilter{
		From:           strings.TrimSpace(c.Query("from")),
		To:             strings.TrimSpace(c.Query("to")),
		EvaluationType: models.EvaluationType(strings.TrimSpace(c.Query("evaluationType"))),
		Subject:        strings.TrimSpace(c.Query("subject")),
		Grade:          strings.TrimSpace(c.Query("grade")),
	}
	for _, raw := range c.QueryArray("teacherId") {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				filter.TeacherIDs = append(filter.TeacherIDs, id)
			}
		}
	}
	return filter
}

func withCacheMeta(c *gin.Context, hit bool) map[string]interface{} {
	middleware.SetCacheHit(c, hit)
	return middleware.ExtractMeta(c)
}
