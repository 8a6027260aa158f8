package httpserver

import (
	"errors"
	"strconv"
	"unicode"

	"github.com/labstack/echo/v4"
)

// errorJSON is the error envelope: a stable machine-readable code plus a
// human-readable message.
func errorJSON(c echo.Context, status int, code, message string) error {
	return c.JSON(status, echo.Map{
		"error":   code,
		"message": message,
	})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

// parseBoolParam returns nil when the query param is absent, so filters can
// distinguish "unset" from false.
func parseBoolParam(s string) *bool {
	switch s {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	}
	return nil
}

// passwordStrength requires at least one uppercase letter, one lowercase
// letter and one digit.
func passwordStrength(value any) error {
	s, _ := value.(string)
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return errors.New("must contain at least one uppercase letter, one lowercase letter, and one number")
	}
	return nil
}

func paginationMeta(page, limit int, total int64) echo.Map {
	pages := (total + int64(limit) - 1) / int64(limit)
	return echo.Map{
		"page":  page,
		"limit": limit,
		"total": total,
		"pages": pages,
	}
}
