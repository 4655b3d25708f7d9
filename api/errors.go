package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"techshop/store"
)

// fieldErrors is a 400 response body keyed by field name.
type fieldErrors map[string][]string

func (e fieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f, msgs := range e {
		fields = append(fields, f+": "+strings.Join(msgs, " "))
	}
	sort.Strings(fields)

	return "invalid input: " + strings.Join(fields, "; ")
}

func (e fieldErrors) add(field, msg string) {
	e[field] = append(e[field], msg)
}

const nonFieldErrors = "non_field_errors"

var (
	errInvalidPage   = fiber.NewError(http.StatusNotFound, "Invalid page.")
	errNotFound      = fiber.NewError(http.StatusNotFound, "Not found.")
	errNoCredentials = fiber.NewError(http.StatusUnauthorized, "Authentication credentials were not provided.")
	errInvalidToken  = fiber.NewError(http.StatusUnauthorized, "Invalid token.")
)

func detail(msg string) fiber.Map {
	return fiber.Map{"detail": msg}
}

func referenceMessages(e *store.ReferenceError) []string {
	if len(e.IDs) == 0 {
		return []string{"Object does not exist."}
	}

	msgs := make([]string, 0, len(e.IDs))
	for _, id := range e.IDs {
		msgs = append(msgs, fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id))
	}

	return msgs
}

func errorHandler(c *fiber.Ctx, err error) error {
	var (
		fe  fieldErrors
		re  *store.ReferenceError
		fbe *fiber.Error
	)

	switch {
	case errors.As(err, &fe):
		return c.Status(http.StatusBadRequest).JSON(fe)
	case errors.As(err, &re):
		return c.Status(http.StatusBadRequest).JSON(fieldErrors{re.Field: referenceMessages(re)})
	case errors.Is(err, store.ErrNotFound):
		return c.Status(http.StatusNotFound).JSON(detail("Not found."))
	case errors.Is(err, store.ErrMergeTooFew):
		return c.Status(http.StatusBadRequest).JSON(detail(mergeTooFewMessage))
	case errors.Is(err, store.ErrOutOfRange):
		return c.Status(http.StatusBadRequest).JSON(detail("Value out of range."))
	case errors.As(err, &fbe):
		if fbe.Code == http.StatusUnauthorized {
			c.Set(fiber.HeaderWWWAuthenticate, `Bearer realm="api"`)
		}
		return c.Status(fbe.Code).JSON(detail(fbe.Message))
	}

	logrus.WithError(err).WithFields(logrus.Fields{
		"method": c.Method(),
		"path":   c.Path(),
	}).Error("request failed")

	return c.Status(http.StatusInternalServerError).JSON(detail("Internal server error."))
}
