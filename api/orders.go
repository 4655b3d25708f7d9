package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"techshop/ent"
	"techshop/notifier"
	"techshop/store"
)

type orderInput struct {
	CustomerName *string `json:"customer_name" validate:"required,notblank,max=200"`
	Address      *string `json:"address" validate:"required,notblank"`
	Delivery     *string `json:"delivery" validate:"required,oneof=standard express pickup"`
	Comment      *string `json:"comment"`
	Total        *number `json:"total" validate:"required,money"`
	Items        *string `json:"items"`
	Status       *string `json:"status" validate:"omitempty,oneof=Pending Shipped Delivered Cancelled"`
}

func (in orderInput) apply(o *ent.Order, given payload) error {
	total, err := in.Total.money()
	if err != nil {
		return err
	}

	o.CustomerName = strings.TrimSpace(*in.CustomerName)
	o.Address = strings.TrimSpace(*in.Address)
	o.Delivery = ent.Delivery(*in.Delivery)
	o.Total = total

	if given.has("comment") {
		o.Comment = trimmed(in.Comment)
	}
	if in.Items != nil {
		o.Items = *in.Items
	}
	if in.Status != nil {
		o.Status = ent.OrderStatus(*in.Status)
	}
	if o.Status == "" {
		o.Status = ent.StatusPending
	}

	return nil
}

// orderBase is the writable part of o, the starting point of a PATCH.
func orderBase(o *ent.Order) payload {
	return toPayload(struct {
		CustomerName string          `json:"customer_name"`
		Address      string          `json:"address"`
		Delivery     ent.Delivery    `json:"delivery"`
		Comment      *string         `json:"comment"`
		Total        ent.Money       `json:"total"`
		Items        string          `json:"items"`
		Status       ent.OrderStatus `json:"status"`
	}{
		CustomerName: o.CustomerName,
		Address:      o.Address,
		Delivery:     o.Delivery,
		Comment:      o.Comment,
		Total:        o.Total,
		Items:        o.Items,
		Status:       o.Status,
	})
}

func (s *Server) listOrders(c *fiber.Ctx) error {
	n, err := pageNumber(c)
	if err != nil {
		return err
	}

	orders, total, err := s.store.ListOrders(c.UserContext(), store.OrderFilter{}, window(n, s.opts.PageSize))
	if err != nil {
		return err
	}

	return paginate(c, n, s.opts.PageSize, total, orders, nil)
}

func (s *Server) getOrder(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	o, err := s.store.GetOrder(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(o)
}

func (s *Server) createOrder(c *fiber.Ctx) error {
	p, err := readPayload(c)
	if err != nil {
		return err
	}

	var in orderInput
	if err := s.bind(p, &in); err != nil {
		return err
	}

	var o ent.Order
	if err := in.apply(&o, p); err != nil {
		return err
	}

	if err := s.store.CreateOrder(c.UserContext(), &o); err != nil {
		return err
	}

	s.hub.Publish(notifier.Event{
		OrderID:  o.ID,
		Status:   o.Status,
		Delivery: o.Delivery,
		Action:   "created",
	})

	return c.Status(fiber.StatusCreated).JSON(o)
}

func (s *Server) updateOrder(c *fiber.Ctx) error {
	return s.writeOrder(c, false)
}

func (s *Server) patchOrder(c *fiber.Ctx) error {
	return s.writeOrder(c, true)
}

func (s *Server) writeOrder(c *fiber.Ctx, partial bool) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	o, err := s.store.GetOrder(c.UserContext(), id)
	if err != nil {
		return err
	}

	p, err := readPayload(c)
	if err != nil {
		return err
	}
	if partial {
		p = p.over(orderBase(o))
	}

	var in orderInput
	if err := s.bind(p, &in); err != nil {
		return err
	}

	before := *o

	if err := in.apply(o, p); err != nil {
		return err
	}

	if err := s.store.UpdateOrder(c.UserContext(), o); err != nil {
		return err
	}

	if o.Status != before.Status || o.Delivery != before.Delivery {
		s.hub.Publish(notifier.Event{
			OrderID:  o.ID,
			Status:   o.Status,
			Delivery: o.Delivery,
			Action:   "updated",
		})
	}

	return c.JSON(o)
}

func (s *Server) deleteOrder(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	if err := s.store.DeleteOrder(c.UserContext(), id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}
