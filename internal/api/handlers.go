package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"candy-gallery/internal/domain"
	"candy-gallery/internal/gallery"
	"candy-gallery/internal/solana"
	"candy-gallery/internal/storage"
)

// StatusResponse is the JSON response of /api/status.
type StatusResponse struct {
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	Busy        bool   `json:"busy"`
	Loading     bool   `json:"loading"`
	RefreshedAt int64  `json:"refreshed_at,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

// RunResponse is the JSON form of a refresh run.
type RunResponse struct {
	ID               string `json:"id"`
	CandyMachine     string `json:"candy_machine,omitempty"`
	Wallet           string `json:"wallet,omitempty"`
	Outcome          string `json:"outcome"`
	MintAllowed      bool   `json:"mint_allowed"`
	GuardCount       int    `json:"guard_count"`
	OwnedTokens      int    `json:"owned_tokens"`
	GalleryEntries   int    `json:"gallery_entries"`
	MetadataFailures int    `json:"metadata_failures"`
	ChainTime        int64  `json:"chain_time"`
	Error            string `json:"error,omitempty"`
	StartedAt        int64  `json:"started_at"`
	FinishedAt       int64  `json:"finished_at"`
}

func newRunResponse(r *domain.RefreshRun) RunResponse {
	resp := RunResponse{
		ID:               r.ID,
		CandyMachine:     r.CandyMachine,
		Wallet:           r.Wallet,
		Outcome:          r.Outcome.String(),
		MintAllowed:      r.MintAllowed,
		GuardCount:       r.GuardCount,
		OwnedTokens:      r.OwnedTokens,
		GalleryEntries:   r.GalleryEntries,
		MetadataFailures: r.MetadataFailures,
		ChainTime:        r.ChainTime,
		StartedAt:        r.StartedAt,
		FinishedAt:       r.FinishedAt,
	}
	if r.Error != nil {
		resp.Error = *r.Error
	}
	return resp
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.SendString("ok")
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	snap := s.gallery.Snapshot()
	return c.JSON(StatusResponse{
		Status:      "running",
		Uptime:      time.Since(s.started).Round(time.Second).String(),
		Busy:        s.gallery.Busy(),
		Loading:     snap.Loading,
		RefreshedAt: snap.RefreshedAt,
		LastError:   snap.LastError,
	})
}

func (s *Server) handleSnapshot(c *fiber.Ctx) error {
	return c.JSON(s.gallery.Snapshot())
}

func (s *Server) handleView(c *fiber.Ctx) error {
	snap := s.gallery.Snapshot()
	return c.JSON(gallery.Render(snap.Loading, snap.Gallery))
}

func (s *Server) handleRefresh(c *fiber.Ctx) error {
	s.gallery.Trigger()
	return c.SendStatus(fiber.StatusAccepted)
}

type toggleRequest struct {
	Check *bool `json:"check"`
	Open  *bool `json:"open"`
}

func (s *Server) handleEligibility(c *fiber.Ctx) error {
	var req toggleRequest
	if err := c.BodyParser(&req); err != nil || req.Check == nil {
		return fiber.NewError(fiber.StatusBadRequest, `body must be {"check": bool}`)
	}
	s.gallery.SetCheckEligibility(*req.Check)
	return c.JSON(s.gallery.Snapshot())
}

func (s *Server) handleModal(c *fiber.Ctx) error {
	var req toggleRequest
	if err := c.BodyParser(&req); err != nil || req.Open == nil {
		return fiber.NewError(fiber.StatusBadRequest, `body must be {"open": bool}`)
	}
	s.gallery.SetModalOpen(*req.Open)
	return c.JSON(s.gallery.Snapshot())
}

type walletRequest struct {
	Address string `json:"address"`
}

func (s *Server) handleConnectWallet(c *fiber.Ctx) error {
	var req walletRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON")
	}
	wallet, err := solana.ParsePublicKey(req.Address)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	s.gallery.ConnectWallet(wallet)
	return c.JSON(s.gallery.Snapshot())
}

func (s *Server) handleDisconnectWallet(c *fiber.Ctx) error {
	s.gallery.DisconnectWallet()
	return c.JSON(s.gallery.Snapshot())
}

func (s *Server) handleNotifications(c *fiber.Ctx) error {
	return c.JSON(s.notices.Active())
}

func (s *Server) handleDismiss(c *fiber.Ctx) error {
	if !s.notices.Dismiss(c.Params("key")) {
		return fiber.NewError(fiber.StatusNotFound, "notification not active")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleNotificationHistory(c *fiber.Ctx) error {
	if s.stores.Notifications == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "notification history is not stored")
	}
	events, err := s.stores.Notifications.ListRecent(c.UserContext(), c.QueryInt("limit", storage.DefaultListLimit))
	if err != nil {
		return err
	}

	out := make([]fiber.Map, 0, len(events))
	for _, e := range events {
		out = append(out, fiber.Map{
			"id":       e.ID,
			"key":      e.Key,
			"title":    e.Title,
			"severity": e.Severity,
			"shown_at": e.ShownAt,
		})
	}
	return c.JSON(out)
}

func (s *Server) handleRuns(c *fiber.Ctx) error {
	if s.stores.Runs == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "refresh runs are not stored")
	}
	runs, err := s.stores.Runs.ListRecent(c.UserContext(), c.QueryInt("limit", storage.DefaultListLimit))
	if err != nil {
		return err
	}

	out := make([]RunResponse, 0, len(runs))
	for _, r := range runs {
		out = append(out, newRunResponse(r))
	}
	return c.JSON(out)
}

func (s *Server) handleRun(c *fiber.Ctx) error {
	if s.stores.Runs == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "refresh runs are not stored")
	}
	run, err := s.stores.Runs.GetByID(c.UserContext(), c.Params("id"))
	if errors.Is(err, storage.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "run not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(newRunResponse(run))
}

func (s *Server) handleRunGuards(c *fiber.Ctx) error {
	if s.stores.Evaluations == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "guard evaluations are not stored")
	}
	records, err := s.stores.Evaluations.GetByRunID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	out := make([]domain.GuardEvaluation, 0, len(records))
	for _, r := range records {
		out = append(out, domain.GuardEvaluation{
			Label:     r.Label,
			Allowed:   r.Allowed,
			MaxAmount: r.MaxAmount,
			Reason:    r.Reason,
		})
	}
	return c.JSON(out)
}
