package api

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"techshop/ent"
	"techshop/notifier"
	"techshop/pricing"
)

const mergeTooFewMessage = "Выберите как минимум 2 категории для объединения."

type action struct {
	name  string
	label string
	run   func(ctx context.Context, ids []int64) (int64, string, error)
}

type actionSet []action

func (as actionSet) find(name string) (action, bool) {
	return lo.Find(as, func(a action) bool { return a.name == name })
}

func (s *Server) bulkActions() map[string]actionSet {
	return map[string]actionSet{
		"products": {
			{
				name:  "set_stock_to_zero",
				label: "Установить запас в 0",
				run: func(ctx context.Context, ids []int64) (int64, string, error) {
					n, err := s.store.SetProductStock(ctx, ids, 0)
					return n, fmt.Sprintf("Обновлено %d товаров: запас установлен в 0", n), err
				},
			},
			{
				name:  "increase_price",
				label: "Увеличить цену на 10 процентов",
				run: func(ctx context.Context, ids []int64) (int64, string, error) {
					n, err := s.store.ScaleProductPrices(ctx, ids, pricing.ProductIncrease)
					return n, fmt.Sprintf("Цены увеличены на 10 процентов для %d товаров", n), err
				},
			},
			{
				name:  "decrease_price",
				label: "Уменьшить цену на 10 процентов",
				run: func(ctx context.Context, ids []int64) (int64, string, error) {
					n, err := s.store.ScaleProductPrices(ctx, ids, pricing.ProductDecrease)
					return n, fmt.Sprintf("Цены уменьшены на 10 процентов для %d товаров", n), err
				},
			},
			{
				name:  "apply_discount",
				label: "Применить скидку 10 процентов",
				run: func(ctx context.Context, ids []int64) (int64, string, error) {
					n, err := s.store.SetProductDiscount(ctx, ids, pricing.BulkDiscount)
					return n, fmt.Sprintf("Скидка 10 процентов применена к %d товарам", n), err
				},
			},
			{
				name:  "remove_discount",
				label: "Снять скидку",
				run: func(ctx context.Context, ids []int64) (int64, string, error) {
					n, err := s.store.SetProductDiscount(ctx, ids, 0)
					return n, fmt.Sprintf("Скидка снята с %d товаров", n), err
				},
			},
		},
		"components": {
			{
				name:  "increase_price",
				label: "Увеличить цену на 5 процентов",
				run: func(ctx context.Context, ids []int64) (int64, string, error) {
					n, err := s.store.ScaleComponentPrices(ctx, ids, pricing.ComponentIncrease)
					return n, fmt.Sprintf("Цены увеличены на 5 процентов для %d комплектующих.", n), err
				},
			},
			{
				name:  "decrease_price",
				label: "Уменьшить цену на 5 процентов",
				run: func(ctx context.Context, ids []int64) (int64, string, error) {
					n, err := s.store.ScaleComponentPrices(ctx, ids, pricing.ComponentDecrease)
					return n, fmt.Sprintf("Цены уменьшены на 5 процентов для %d комплектующих.", n), err
				},
			},
		},
		"categories": {
			{
				name:  "duplicate",
				label: "Дублировать выбранные категории",
				run: func(ctx context.Context, ids []int64) (int64, string, error) {
					n, err := s.store.DuplicateCategories(ctx, ids)
					return n, fmt.Sprintf("Созданы копии для %d категорий.", n), err
				},
			},
			{
				name:  "merge",
				label: "Объединить выбранные категории",
				run: func(ctx context.Context, ids []int64) (int64, string, error) {
					main, n, err := s.store.MergeCategories(ctx, ids)
					if err != nil {
						return 0, "", err
					}
					return n, fmt.Sprintf("Объединено %d категорий в '%s'.", n, main.Name), nil
				},
			},
		},
		"orders": {
			s.orderAction("mark_express", "Пометить как Экспресс",
				"доставка изменена на Экспресс",
				func(ctx context.Context, ids []int64) ([]int64, notifier.Event, error) {
					updated, err := s.store.SetOrderDelivery(ctx, ids, ent.DeliveryExpress)
					return updated, notifier.Event{Delivery: ent.DeliveryExpress}, err
				}),
			s.orderAction("mark_shipped", "Пометить как отправленные",
				"статус изменён на 'Отправлен'", s.setStatus(ent.StatusShipped)),
			s.orderAction("mark_delivered", "Пометить как доставленные",
				"статус изменён на 'Доставлен'", s.setStatus(ent.StatusDelivered)),
			s.orderAction("cancel", "Отменить заказы",
				"статус изменён на 'Отменён'", s.setStatus(ent.StatusCancelled)),
		},
	}
}

type orderUpdate func(ctx context.Context, ids []int64) ([]int64, notifier.Event, error)

func (s *Server) setStatus(status ent.OrderStatus) orderUpdate {
	return func(ctx context.Context, ids []int64) ([]int64, notifier.Event, error) {
		updated, err := s.store.SetOrderStatus(ctx, ids, status)
		return updated, notifier.Event{Status: status}, err
	}
}

// orderAction wraps an order update so that every touched order is published.
func (s *Server) orderAction(name, label, done string, update orderUpdate) action {
	return action{
		name:  name,
		label: label,
		run: func(ctx context.Context, ids []int64) (int64, string, error) {
			updated, tmpl, err := update(ctx, ids)
			if err != nil {
				return 0, "", err
			}

			s.hub.Publish(lo.Map(updated, func(id int64, _ int) notifier.Event {
				e := tmpl
				e.OrderID = id
				e.Action = name
				return e
			})...)

			n := int64(len(updated))
			return n, fmt.Sprintf("Обновлено %d заказов: %s", n, done), nil
		},
	}
}

type actionInput struct {
	IDs []int64 `json:"ids" validate:"min=1"`
}

func (s *Server) runAction(c *fiber.Ctx) error {
	set, ok := s.actions[c.Params("resource")]
	if !ok {
		return errNotFound
	}

	a, ok := set.find(c.Params("action"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "Unknown action.")
	}

	p, err := readPayload(c)
	if err != nil {
		return err
	}

	var in actionInput
	if err := s.bind(p, &in); err != nil {
		return err
	}

	ids := lo.Uniq(in.IDs)

	updated, msg, err := a.run(c.UserContext(), ids)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"resource": c.Params("resource"),
		"action":   a.name,
		"ids":      ids,
		"updated":  updated,
	}).Info("admin action")

	return c.JSON(fiber.Map{
		"action":  a.name,
		"updated": updated,
		"message": msg,
	})
}
