package api

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"deal_hunter/config"
	"deal_hunter/services"
	"deal_hunter/storage"
	"deal_hunter/workers"
)

// Hunter runs one search. services.HuntService implements it.
type Hunter interface {
	Hunt(ctx context.Context, req services.HuntRequest) (*services.HuntResult, error)
}

// ItemInspector scores a single item page. workers.EnrichmentWorker
// implements it.
type ItemInspector interface {
	Inspect(ctx context.Context, itemURL string) (*workers.ItemReport, error)
}

type Server struct {
	app       *fiber.App
	cfg       config.APIConfig
	hunt      config.HuntConfig
	hunter    Hunter
	store     storage.DealStore
	inspector ItemInspector
}

func New(cfg *config.Config, hunter Hunter, store storage.DealStore, inspector ItemInspector) *Server {
	s := &Server{
		cfg:       cfg.API,
		hunt:      cfg.Hunt,
		hunter:    hunter,
		store:     store,
		inspector: inspector,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "deal_hunter",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// a hunt waits on every source
		WriteTimeout: cfg.Hunt.SourceTimeout + 30*time.Second,
		ErrorHandler: errorHandler,
	})
	s.app.Use(recover.New())
	s.app.Use(logger.New(logger.Config{
		Format:     "[api] ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		Output:     log.Writer(),
	}))

	s.app.Get("/health", s.health)

	api := s.app.Group("/api")
	if s.cfg.RateLimit > 0 {
		api.Use(rateLimit(s.cfg.RateLimit, time.Minute))
	}
	if s.cfg.AuthEnabled() {
		api.Use(basicauth.New(basicauth.Config{
			Users: map[string]string{s.cfg.User: s.cfg.Pass},
			Realm: "deal_hunter",
		}))
	}

	api.Get("/search", s.search)
	api.Get("/stats", s.stats)
	api.Get("/history", s.history)
	api.Get("/deals", s.recentDeals)
	api.Get("/saved", s.savedDeals)
	api.Post("/saved", s.saveDeal)
	api.Delete("/saved", s.removeSavedDeal)
	api.Get("/item", s.item)
	api.Post("/commands", s.enqueueCommand)

	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen() error {
	log.Printf("[api] listening on %s (auth %v, %d req/min)", s.cfg.Addr, s.cfg.AuthEnabled(), s.cfg.RateLimit)
	return s.app.Listen(s.cfg.Addr)
}

func (s *Server) Shutdown(timeout time.Duration) error {
	return s.app.ShutdownWithTimeout(timeout)
}

func rateLimit(max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many requests"})
		},
	})
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	if code >= fiber.StatusInternalServerError {
		log.Printf("[api] Warning: %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
