package api

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"techshop/ent"
	"techshop/lineitems"
	"techshop/pricing"
	"techshop/store"
)

// AdminAssets are the stylesheets and scripts every admin screen loads.
// Paths are relative to STATIC_URL.
type AdminAssets struct {
	CSS []string `json:"css"`
	JS  []string `json:"js"`
}

var DefaultAssets = AdminAssets{
	CSS: []string{"admin/css/output.css"},
	JS:  []string{"admin/js/my_custom_admin.js"},
}

const (
	siteHeader = "Админ-панель Tech Shop"
	siteTitle  = "Tech Shop"
	indexTitle = "Управление магазином"
)

// assets resolves the configured asset paths against STATIC_URL.
func (s *Server) assets(c *fiber.Ctx) *AdminAssets {
	resolve := func(p string, _ int) string {
		u := s.opts.StaticURL + strings.TrimPrefix(p, "/")
		if !strings.Contains(u, "://") {
			u = c.BaseURL() + u
		}
		return u
	}

	return &AdminAssets{
		CSS: lo.Map(s.opts.Assets.CSS, resolve),
		JS:  lo.Map(s.opts.Assets.JS, resolve),
	}
}

type actionInfo struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

func (s *Server) site(c *fiber.Ctx) error {
	actions := map[string][]actionInfo{}
	for resource, set := range s.actions {
		actions[resource] = lo.Map(set, func(a action, _ int) actionInfo {
			return actionInfo{Name: a.name, Label: a.label}
		})
	}

	return c.JSON(fiber.Map{
		"site_header": siteHeader,
		"site_title":  siteTitle,
		"index_title": indexTitle,
		"media":       s.assets(c),
		"actions":     actions,
	})
}

// queryInt reads an optional integer filter.
func queryInt(c *fiber.Ctx, key string) (*int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fieldErrors{key: {"Enter a whole number."}}
	}

	return &n, nil
}

func queryChoice(c *fiber.Ctx, key string, valid func(string) bool) (string, error) {
	raw := c.Query(key)
	if raw == "" || valid(raw) {
		return raw, nil
	}

	return "", fieldErrors{key: {"Select a valid choice. " + raw + " is not one of the available choices."}}
}

type adminCategory struct {
	ent.CategoryStats

	ProductsURL string `json:"products_url"`
}

func (s *Server) adminCategories(c *fiber.Ctx) error {
	n, err := pageNumber(c)
	if err != nil {
		return err
	}

	size := s.opts.AdminPageSize

	cs, total, err := s.store.CategoryStats(c.UserContext(), c.Query("q"), window(n, size))
	if err != nil {
		return err
	}

	rows := lo.Map(cs, func(cat ent.CategoryStats, _ int) adminCategory {
		return adminCategory{
			CategoryStats: cat,
			ProductsURL:   c.BaseURL() + "/api/admin/products?category=" + strconv.FormatInt(cat.ID, 10),
		}
	})

	return paginate(c, n, size, total, rows, s.assets(c))
}

type adminProduct struct {
	productView

	FinalPrice         ent.Money `json:"final_price"`
	IsAvailable        bool      `json:"is_available"`
	ComponentTypeLabel string    `json:"component_type_label"`
}

func (s *Server) adminProducts(c *fiber.Ctx) error {
	n, err := pageNumber(c)
	if err != nil {
		return err
	}

	f := store.ProductFilter{Search: c.Query("q")}

	category, err := queryInt(c, "category")
	if err != nil {
		return err
	}
	if category != nil {
		f.CategoryID = *category
	}

	ct, err := queryChoice(c, "component_type", func(v string) bool {
		return ent.ComponentType(v).Valid()
	})
	if err != nil {
		return err
	}
	f.ComponentType = ent.ComponentType(ct)

	discount, err := queryInt(c, "discount")
	if err != nil {
		return err
	}
	if discount != nil {
		d := int(*discount)
		f.Discount = &d
	}

	size := s.opts.AdminPageSize

	ps, total, err := s.store.ListProducts(c.UserContext(), f, window(n, size))
	if err != nil {
		return err
	}

	rows := lo.Map(ps, func(p ent.Product, _ int) adminProduct {
		return adminProduct{
			productView:        s.productView(c, &p),
			FinalPrice:         pricing.FinalPrice(p.BasePrice, p.Discount),
			IsAvailable:        pricing.IsAvailable(p.Stock),
			ComponentTypeLabel: p.ComponentType.Label(),
		}
	})

	return paginate(c, n, size, total, rows, s.assets(c))
}

type adminComponent struct {
	ent.ComponentUsage

	TypeLabel string `json:"type_label"`
}

func (s *Server) adminComponents(c *fiber.Ctx) error {
	n, err := pageNumber(c)
	if err != nil {
		return err
	}

	t, err := queryChoice(c, "type", func(v string) bool {
		return ent.ComponentType(v).Valid()
	})
	if err != nil {
		return err
	}

	size := s.opts.AdminPageSize

	cs, total, err := s.store.ListComponents(c.UserContext(), store.ComponentFilter{
		Search: c.Query("q"),
		Type:   ent.ComponentType(t),
	}, window(n, size))
	if err != nil {
		return err
	}

	rows := lo.Map(cs, func(co ent.ComponentUsage, _ int) adminComponent {
		return adminComponent{ComponentUsage: co, TypeLabel: co.Type.Label()}
	})

	return paginate(c, n, size, total, rows, s.assets(c))
}

type adminOrder struct {
	ent.Order

	ItemCount int      `json:"item_count"`
	ItemList  []string `json:"item_list"`
}

func (s *Server) adminOrders(c *fiber.Ctx) error {
	n, err := pageNumber(c)
	if err != nil {
		return err
	}

	delivery, err := queryChoice(c, "delivery", func(v string) bool {
		return lo.Contains([]ent.Delivery{ent.DeliveryStandard, ent.DeliveryExpress, ent.DeliveryPickup}, ent.Delivery(v))
	})
	if err != nil {
		return err
	}

	status, err := queryChoice(c, "status", func(v string) bool {
		return lo.Contains([]ent.OrderStatus{ent.StatusPending, ent.StatusShipped, ent.StatusDelivered, ent.StatusCancelled}, ent.OrderStatus(v))
	})
	if err != nil {
		return err
	}

	size := s.opts.AdminPageSize

	orders, total, err := s.store.ListOrders(c.UserContext(), store.OrderFilter{
		Search:   c.Query("q"),
		Delivery: ent.Delivery(delivery),
		Status:   ent.OrderStatus(status),
	}, window(n, size))
	if err != nil {
		return err
	}

	rows := lo.Map(orders, func(o ent.Order, _ int) adminOrder {
		return adminOrder{
			Order:     o,
			ItemCount: lineitems.Count(o.Items),
			ItemList:  lineitems.Parse(o.Items).Display(),
		}
	})

	return paginate(c, n, size, total, rows, s.assets(c))
}

type componentInput struct {
	Name   *string `json:"name" validate:"required,notblank,max=100"`
	Price  *number `json:"price" validate:"omitempty,money"`
	Volume *string `json:"volume" validate:"omitempty,max=50"`
	Type   *string `json:"type" validate:"omitempty,oneof=cpu gpu ram motherboard case psu storage other"`
}

func (in componentInput) apply(co *ent.ComponentOption, given payload) error {
	co.Name = strings.TrimSpace(*in.Name)

	if in.Price != nil {
		price, err := in.Price.money()
		if err != nil {
			return err
		}
		co.Price = price
	}

	if given.has("volume") {
		co.Volume = trimmed(in.Volume)
	}

	if in.Type != nil {
		co.Type = ent.ComponentType(*in.Type)
	}
	if co.Type == "" {
		co.Type = ent.ComponentOther
	}

	return nil
}

func (s *Server) getComponent(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	co, err := s.store.GetComponent(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(co)
}

func (s *Server) createComponent(c *fiber.Ctx) error {
	p, err := readPayload(c)
	if err != nil {
		return err
	}

	var in componentInput
	if err := s.bind(p, &in); err != nil {
		return err
	}

	var co ent.ComponentOption
	if err := in.apply(&co, p); err != nil {
		return err
	}

	if err := s.store.CreateComponent(c.UserContext(), &co); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(co)
}

func (s *Server) updateComponent(c *fiber.Ctx) error {
	return s.writeComponent(c, false)
}

func (s *Server) patchComponent(c *fiber.Ctx) error {
	return s.writeComponent(c, true)
}

func (s *Server) writeComponent(c *fiber.Ctx, partial bool) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	co, err := s.store.GetComponent(c.UserContext(), id)
	if err != nil {
		return err
	}

	p, err := readPayload(c)
	if err != nil {
		return err
	}
	if partial {
		p = p.over(toPayload(co))
	}

	var in componentInput
	if err := s.bind(p, &in); err != nil {
		return err
	}

	if err := in.apply(co, p); err != nil {
		return err
	}

	if err := s.store.UpdateComponent(c.UserContext(), co); err != nil {
		return err
	}

	return c.JSON(co)
}

func (s *Server) deleteComponent(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	if err := s.store.DeleteComponent(c.UserContext(), id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) componentChoices(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	cs, err := s.store.ComponentChoices(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(cs)
}

type idsInput struct {
	IDs []int64 `json:"ids"`
}

func (s *Server) setProductComponents(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	p, err := readPayload(c)
	if err != nil {
		return err
	}

	var in idsInput
	if err := s.bind(p, &in); err != nil {
		return err
	}

	product, err := s.store.SetProductComponents(c.UserContext(), id, lo.Uniq(in.IDs))
	if err != nil {
		return err
	}

	return c.JSON(s.productView(c, product))
}
