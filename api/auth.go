package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"techshop/auth"
)

const claimsKey = "claims"

// authenticate resolves "Authorization: Bearer <jwt>" (or "Token <jwt>").
// Requests without credentials pass through anonymously.
func (s *Server) authenticate(c *fiber.Ctx) error {
	h := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if h == "" {
		return c.Next()
	}

	scheme, token, _ := strings.Cut(h, " ")
	if !strings.EqualFold(scheme, "Bearer") && !strings.EqualFold(scheme, "Token") {
		return c.Next()
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token header. No credentials provided.")
	}

	claims, err := s.auth.Verify(token)
	if err != nil {
		return errInvalidToken
	}

	c.Locals(claimsKey, claims)

	return c.Next()
}

func authenticated(c *fiber.Ctx) bool {
	claims, ok := c.Locals(claimsKey).(*auth.Claims)
	return ok && claims != nil
}

func requireAuthenticated(c *fiber.Ctx) error {
	if !authenticated(c) {
		return errNoCredentials
	}

	return c.Next()
}

// readOnlyOrAuthenticated lets anyone read and only authenticated clients write.
func readOnlyOrAuthenticated(c *fiber.Ctx) error {
	switch c.Method() {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
		return c.Next()
	}

	return requireAuthenticated(c)
}

type tokenInput struct {
	Username *string `json:"username" validate:"required,notblank"`
	Password *string `json:"password" validate:"required,notblank"`
}

func (s *Server) token(c *fiber.Ctx) error {
	p, err := readPayload(c)
	if err != nil {
		return err
	}

	var in tokenInput
	if err := s.bind(p, &in); err != nil {
		return err
	}

	token, err := s.auth.Login(*in.Username, *in.Password)
	if errors.Is(err, auth.ErrBadCredentials) {
		logrus.WithField("username", *in.Username).Warn("failed login")
		return fieldErrors{nonFieldErrors: {"Unable to log in with provided credentials."}}
	}
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"token": token})
}
