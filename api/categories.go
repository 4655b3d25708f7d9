package api

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"techshop/ent"
)

type categoryInput struct {
	Name *string `json:"name" validate:"required,notblank,max=100"`
}

func (in categoryInput) apply(c *ent.Category) {
	c.Name = strings.TrimSpace(*in.Name)
}

// idParam reads :id; anything but a positive integer matches no record.
func idParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errNotFound
	}

	return id, nil
}

func (s *Server) listCategories(c *fiber.Ctx) error {
	n, err := pageNumber(c)
	if err != nil {
		return err
	}

	cs, total, err := s.store.ListCategories(c.UserContext(), window(n, s.opts.PageSize))
	if err != nil {
		return err
	}

	return paginate(c, n, s.opts.PageSize, total, cs, nil)
}

func (s *Server) getCategory(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	cat, err := s.store.GetCategory(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(cat)
}

func (s *Server) createCategory(c *fiber.Ctx) error {
	p, err := readPayload(c)
	if err != nil {
		return err
	}

	var in categoryInput
	if err := s.bind(p, &in); err != nil {
		return err
	}

	var cat ent.Category
	in.apply(&cat)

	if err := s.store.CreateCategory(c.UserContext(), &cat); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(cat)
}

func (s *Server) updateCategory(c *fiber.Ctx) error {
	return s.writeCategory(c, false)
}

func (s *Server) patchCategory(c *fiber.Ctx) error {
	return s.writeCategory(c, true)
}

func (s *Server) writeCategory(c *fiber.Ctx, partial bool) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	cat, err := s.store.GetCategory(c.UserContext(), id)
	if err != nil {
		return err
	}

	p, err := readPayload(c)
	if err != nil {
		return err
	}
	if partial {
		p = p.over(toPayload(cat))
	}

	var in categoryInput
	if err := s.bind(p, &in); err != nil {
		return err
	}

	in.apply(cat)

	if err := s.store.UpdateCategory(c.UserContext(), cat); err != nil {
		return err
	}

	return c.JSON(cat)
}

func (s *Server) deleteCategory(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	if err := s.store.DeleteCategory(c.UserContext(), id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}
