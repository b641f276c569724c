package service

import (
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
)

func newID() string {
	return uuid.NewString()
}

func requireSession(sess *models.Session) error {
	if !sess.Valid() {
		return appErrors.Clone(appErrors.ErrUnauthorized, "no active session")
	}
	return nil
}

func requirePermission(sess *models.Session, p models.Permission) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	if !sess.HasPermission(p) {
		return appErrors.Clone(appErrors.ErrForbidden, "missing permission "+string(p))
	}
	return nil
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func persistError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func findIndex[T any](items []T, match func(T) bool) int {
	for i, item := range items {
		if match(item) {
			return i
		}
	}
	return -1
}

func persistErrorOrNil(err error, message string) error {
	if err == nil {
		return nil
	}
	return persistError(err, message)
}

// sortByDateDesc orders items most recent first, keeping input order for equal dates.
func sortByDateDesc[T any](items []T, date func(T) string) {
	sort.SliceStable(items, func(i, j int) bool { return date(items[i]) > date(items[j]) })
}
