package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/tgregoire/invgov-backend/services"
)

type CacheHandler struct {
	Sync *services.CacheSyncService
}

func NewCacheHandler(sync *services.CacheSyncService) *CacheHandler {
	return &CacheHandler{Sync: sync}
}

// Progress reports the current refresh state; safe to poll at any time.
func (h *CacheHandler) Progress(c *fiber.Ctx) error {
	return c.JSON(h.Sync.Progress())
}

// Refresh triggers a cache refresh and returns immediately. A refresh that
// is already running is joined, not duplicated.
func (h *CacheHandler) Refresh(c *fiber.Ctx) error {
	go h.Sync.Refresh()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"message": "cache refresh started"})
}

// AwaitReady blocks until the cache reaches a terminal refresh state or the
// caller's timeout elapses. Used by clients that need a warm cache before
// their first read.
func (h *CacheHandler) AwaitReady(c *fiber.Ctx) error {
	timeout := 30 * time.Second
	if raw := c.Query("timeout_seconds"); raw != "" {
		if parsed, err := time.ParseDuration(raw + "s"); err == nil && parsed > 0 {
			timeout = parsed
		}
	}

	if err := h.Sync.AwaitReady(timeout); err != nil {
		return respondError(c, err)
	}

	return c.JSON(h.Sync.Progress())
}
