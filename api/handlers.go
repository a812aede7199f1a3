package api

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"deal_hunter/config"
	"deal_hunter/identity"
	"deal_hunter/models"
	"deal_hunter/notify"
	"deal_hunter/services"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

type dealView struct {
	notify.Alert
	New bool `json:"new"`
}

type searchResponse struct {
	Run      *models.SearchRun     `json:"run"`
	Sources  []models.SourceResult `json:"sources"`
	Listings int                   `json:"listings"`
	Unscored int                   `json:"unscored"`
	Degraded bool                  `json:"degraded"`
	Deals    []dealView            `json:"deals"`
}

// GET /health
func (s *Server) health(c *fiber.Ctx) error {
	if _, err := s.store.Stats(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "error": "store unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// GET /api/search?q=&sources=&min_profit=&min_margin=&max_margin=&max_results=
func (s *Server) search(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return fiber.NewError(fiber.StatusBadRequest, "q is required")
	}

	req := services.HuntRequest{Query: query, Filter: services.FilterFromConfig(s.hunt)}
	if raw := c.Query("sources"); raw != "" {
		sources, err := config.ParseSources(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		req.Sources = sources
	}

	var override services.Filter
	var err error
	if override.MinProfit, err = queryFloat(c, "min_profit"); err != nil {
		return err
	}
	if override.MinMargin, err = queryFloat(c, "min_margin"); err != nil {
		return err
	}
	if override.MaxMargin, err = queryFloat(c, "max_margin"); err != nil {
		return err
	}
	req.Filter = req.Filter.Override(override)
	if req.MaxResults, err = queryInt(c, "max_results", 0); err != nil {
		return err
	}

	res, err := s.hunter.Hunt(c.UserContext(), req)
	if err != nil {
		return err
	}

	resp := searchResponse{
		Run:      res.Run,
		Sources:  res.Sources,
		Listings: len(res.Listings),
		Unscored: res.Unscored,
		Degraded: res.Degraded,
		Deals:    make([]dealView, 0, len(res.Deals)),
	}
	for _, d := range res.Deals {
		resp.Deals = append(resp.Deals, dealView{Alert: notify.AlertFromDeal(d), New: d.New})
	}
	return c.JSON(resp)
}

// GET /api/stats
func (s *Server) stats(c *fiber.Ctx) error {
	stats, err := s.store.Stats(c.UserContext())
	if err != nil {
		return storeError(err)
	}
	return c.JSON(stats)
}

// GET /api/history?limit=
func (s *Server) history(c *fiber.Ctx) error {
	limit, err := listLimit(c)
	if err != nil {
		return err
	}
	runs, err := s.store.RecentSearches(c.UserContext(), limit)
	if err != nil {
		return storeError(err)
	}
	if runs == nil {
		runs = []models.SearchRun{}
	}
	return c.JSON(fiber.Map{"searches": runs})
}

// GET /api/deals?limit=
func (s *Server) recentDeals(c *fiber.Ctx) error {
	limit, err := listLimit(c)
	if err != nil {
		return err
	}
	deals, err := s.store.RecentDeals(c.UserContext(), limit)
	if err != nil {
		return storeError(err)
	}
	if deals == nil {
		deals = []models.SeenDeal{}
	}
	return c.JSON(fiber.Map{"deals": deals})
}

// GET /api/saved
func (s *Server) savedDeals(c *fiber.Ctx) error {
	deals, err := s.store.SavedDeals(c.UserContext())
	if err != nil {
		return storeError(err)
	}
	if deals == nil {
		deals = []models.SavedDeal{}
	}
	return c.JSON(fiber.Map{"saved": deals})
}

// POST /api/saved
func (s *Server) saveDeal(c *fiber.Ctx) error {
	var deal models.SavedDeal
	if err := c.BodyParser(&deal); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	canonical, ok := identity.CanonicalURL(deal.URL, "")
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "url is required")
	}
	deal.URL = canonical
	deal.SavedAt = time.Now().UTC()

	if err := s.store.SaveDeal(c.UserContext(), &deal); err != nil {
		return storeError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(deal)
}

// DELETE /api/saved?url=
func (s *Server) removeSavedDeal(c *fiber.Ctx) error {
	url := c.Query("url")
	if url == "" {
		return fiber.NewError(fiber.StatusBadRequest, "url is required")
	}
	if canonical, ok := identity.CanonicalURL(url, ""); ok {
		url = canonical
	}
	removed, err := s.store.RemoveSavedDeal(c.UserContext(), url)
	if err != nil {
		return storeError(err)
	}
	if !removed {
		return fiber.NewError(fiber.StatusNotFound, "not saved")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GET /api/item?url=
func (s *Server) item(c *fiber.Ctx) error {
	url := c.Query("url")
	if url == "" {
		return fiber.NewError(fiber.StatusBadRequest, "url is required")
	}
	report, err := s.inspector.Inspect(c.UserContext(), url)
	if err != nil {
		if errors.Is(err, models.ErrSourceUnavailable) {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(report)
}

type commandRequest struct {
	Command models.CommandType `json:"command"`
	Query   string             `json:"query"`
	Sources []string           `json:"sources"`
}

// POST /api/commands
func (s *Server) enqueueCommand(c *fiber.Ctx) error {
	var req commandRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	switch req.Command {
	case models.CmdHuntNow, models.CmdPause, models.CmdResume:
	case models.CmdHuntQuery:
		if strings.TrimSpace(req.Query) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "query is required")
		}
	default:
		return fiber.NewError(fiber.StatusBadRequest, "unknown command")
	}
	if len(req.Sources) > 0 {
		if _, err := config.ParseSources(strings.Join(req.Sources, ",")); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}

	params := &models.CommandParams{Query: req.Query, Sources: req.Sources}
	if err := s.store.EnqueueCommand(c.UserContext(), req.Command, params); err != nil {
		return storeError(err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"queued": req.Command})
}

func storeError(err error) error {
	if errors.Is(err, models.ErrStoreUnavailable) {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return err
}

func queryFloat(c *fiber.Ctx, key string) (*float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+key)
	}
	return &v, nil
}

func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+key)
	}
	return v, nil
}

func listLimit(c *fiber.Ctx) (int, error) {
	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil {
		return 0, err
	}
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}
