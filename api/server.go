// Package api serves the storefront REST API, the admin JSON API and the
// order change feed.
package api

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"techshop/auth"
	"techshop/ent"
	"techshop/notifier"
	"techshop/store"
)

type Store interface {
	Ping(ctx context.Context) error

	ListCategories(ctx context.Context, p store.Page) ([]ent.Category, int, error)
	GetCategory(ctx context.Context, id int64) (*ent.Category, error)
	CreateCategory(ctx context.Context, c *ent.Category) error
	UpdateCategory(ctx context.Context, c *ent.Category) error
	DeleteCategory(ctx context.Context, id int64) error
	CategoryStats(ctx context.Context, search string, p store.Page) ([]ent.CategoryStats, int, error)
	DuplicateCategories(ctx context.Context, ids []int64) (int64, error)
	MergeCategories(ctx context.Context, ids []int64) (*ent.Category, int64, error)

	ListProducts(ctx context.Context, f store.ProductFilter, p store.Page) ([]ent.Product, int, error)
	GetProduct(ctx context.Context, id int64) (*ent.Product, error)
	CreateProduct(ctx context.Context, p *ent.Product) error
	UpdateProduct(ctx context.Context, p *ent.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	SetProductComponents(ctx context.Context, id int64, componentIDs []int64) (*ent.Product, error)
	ComponentChoices(ctx context.Context, productID int64) ([]ent.ComponentOption, error)
	SetProductStock(ctx context.Context, ids []int64, stock int) (int64, error)
	SetProductDiscount(ctx context.Context, ids []int64, discount int) (int64, error)
	ScaleProductPrices(ctx context.Context, ids []int64, factor decimal.Decimal) (int64, error)

	ListComponents(ctx context.Context, f store.ComponentFilter, p store.Page) ([]ent.ComponentUsage, int, error)
	GetComponent(ctx context.Context, id int64) (*ent.ComponentOption, error)
	CreateComponent(ctx context.Context, c *ent.ComponentOption) error
	UpdateComponent(ctx context.Context, c *ent.ComponentOption) error
	DeleteComponent(ctx context.Context, id int64) error
	ScaleComponentPrices(ctx context.Context, ids []int64, factor decimal.Decimal) (int64, error)

	ListOrders(ctx context.Context, f store.OrderFilter, p store.Page) ([]ent.Order, int, error)
	GetOrder(ctx context.Context, id int64) (*ent.Order, error)
	CreateOrder(ctx context.Context, o *ent.Order) error
	UpdateOrder(ctx context.Context, o *ent.Order) error
	DeleteOrder(ctx context.Context, id int64) error
	SetOrderStatus(ctx context.Context, ids []int64, status ent.OrderStatus) ([]int64, error)
	SetOrderDelivery(ctx context.Context, ids []int64, delivery ent.Delivery) ([]int64, error)
}

type Options struct {
	PageSize      int
	AdminPageSize int

	MediaRoot  string
	MediaURL   string
	StaticRoot string
	StaticURL  string

	Assets AdminAssets
}

type Server struct {
	store    Store
	auth     *auth.Authenticator
	hub      *notifier.Hub
	validate *validator.Validate
	opts     Options
	actions  map[string]actionSet

	app *fiber.App

	wsMu      sync.Mutex
	wsClosing bool
	wsWg      sync.WaitGroup
}

func New(st Store, a *auth.Authenticator, hub *notifier.Hub, opts Options) *Server {
	if opts.PageSize <= 0 {
		opts.PageSize = 12
	}
	if opts.AdminPageSize <= 0 {
		opts.AdminPageSize = 20
	}
	if opts.MediaURL == "" {
		opts.MediaURL = "/media/"
	}
	if opts.StaticURL == "" {
		opts.StaticURL = "/static/"
	}
	if opts.Assets.CSS == nil && opts.Assets.JS == nil {
		opts.Assets = DefaultAssets
	}

	s := &Server{
		store:    st,
		auth:     a,
		hub:      hub,
		validate: newValidator(),
		opts:     opts,
	}

	s.actions = s.bulkActions()
	s.app = s.routes()

	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) ListenTLS(addr, cert, key string) error {
	return s.app.ListenTLS(addr, cert, key)
}

// Shutdown closes the order feeds, stops the web server and waits for the
// websocket handlers to return.
func (s *Server) Shutdown() error {
	s.wsMu.Lock()
	s.wsClosing = true
	s.wsMu.Unlock()

	s.hub.Close()

	err := s.app.Shutdown()

	s.wsWg.Wait()

	return err
}

// trackFeed registers a websocket handler with Shutdown. It reports false
// once shutdown has started.
func (s *Server) trackFeed() bool {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()

	if s.wsClosing {
		return false
	}

	s.wsWg.Add(1)
	return true
}

func (s *Server) routes() *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
		BodyLimit:    64 << 20,
	})

	app.Use(recover.New(), logger.New(), cors.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/api/", http.StatusFound)
	})

	api := app.Group("/api", s.authenticate)

	api.Get("/", s.root)
	api.Get("/health", s.health)
	api.Post("/auth/token", s.token)

	categories := api.Group("/categories", readOnlyOrAuthenticated)
	categories.Get("", s.listCategories)
	categories.Post("", s.createCategory)
	categories.Get("/:id", s.getCategory)
	categories.Put("/:id", s.updateCategory)
	categories.Patch("/:id", s.patchCategory)
	categories.Delete("/:id", s.deleteCategory)

	products := api.Group("/products", readOnlyOrAuthenticated)
	products.Get("", s.listProducts)
	products.Post("", s.createProduct)
	products.Get("/:id", s.getProduct)
	products.Put("/:id", s.updateProduct)
	products.Patch("/:id", s.patchProduct)
	products.Delete("/:id", s.deleteProduct)

	orders := api.Group("/orders", readOnlyOrAuthenticated)
	orders.Get("", s.listOrders)
	orders.Post("", s.createOrder)
	orders.Get("/:id", s.getOrder)
	orders.Put("/:id", s.updateOrder)
	orders.Patch("/:id", s.patchOrder)
	orders.Delete("/:id", s.deleteOrder)

	admin := api.Group("/admin", requireAuthenticated)
	admin.Get("/site", s.site)
	admin.Get("/categories", s.adminCategories)
	admin.Get("/products", s.adminProducts)
	admin.Get("/products/:id/component-choices", s.componentChoices)
	admin.Put("/products/:id/components", s.setProductComponents)
	admin.Get("/components", s.adminComponents)
	admin.Post("/components", s.createComponent)
	admin.Get("/components/:id", s.getComponent)
	admin.Put("/components/:id", s.updateComponent)
	admin.Patch("/components/:id", s.patchComponent)
	admin.Delete("/components/:id", s.deleteComponent)
	admin.Get("/orders", s.adminOrders)
	admin.Post("/:resource/actions/:action", s.runAction)

	app.Get("/ws/orders", s.feedAuth, websocket.New(s.orderFeed))

	if s.opts.MediaRoot != "" {
		app.Use(mountPath(s.opts.MediaURL), filesystem.New(filesystem.Config{
			Root: http.Dir(s.opts.MediaRoot),
		}))
	}

	if s.opts.StaticRoot != "" {
		app.Use(mountPath(s.opts.StaticURL), filesystem.New(filesystem.Config{
			Root: http.Dir(s.opts.StaticRoot),
		}))
	}

	return app
}

// mountPath turns a URL prefix such as "/media/" into a fiber mount path.
func mountPath(prefix string) string {
	p := "/" + strings.Trim(prefix, "/")
	if p == "/" {
		return ""
	}
	return p
}

// health reports whether the database answers.
func (s *Server) health(c *fiber.Ctx) error {
	if err := s.store.Ping(c.UserContext()); err != nil {
		logrus.WithError(err).Warn("health check failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(detail("Database unavailable."))
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) root(c *fiber.Ctx) error {
	base := c.BaseURL() + "/api/"

	return c.JSON(fiber.Map{
		"categories": base + "categories/",
		"products":   base + "products/",
		"orders":     base + "orders/",
	})
}
