package api

import (
	"net/url"

	"github.com/gofiber/fiber/v2"

	"mailfan/blacklist"
	"mailfan/utils"
)

// BlacklistHandler is the administrative passthrough to the blacklist
// service, speaking through the same protocol client as the delivery gate.
type BlacklistHandler struct {
	client *blacklist.Client
}

// NewBlacklistHandler creates a new blacklist handler
func NewBlacklistHandler(client *blacklist.Client) *BlacklistHandler {
	return &BlacklistHandler{client: client}
}

// AddURL registers a URL with the blacklist service.
func (h *BlacklistHandler) AddURL(c *fiber.Ctx) error {
	var req struct {
		URL string `json:"url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.ValidationError("invalid request body", err)
	}
	if req.URL == "" {
		return utils.ValidationError("url required", nil)
	}

	if err := h.client.Add(req.URL); err != nil {
		return err
	}
	return c.Status(201).JSON(fiber.Map{
		"message": "URL added to blacklist",
		"url":     req.URL,
	})
}

// RemoveURL deletes a URL from the blacklist service. The URL rides in the
// path, percent-encoded.
func (h *BlacklistHandler) RemoveURL(c *fiber.Ctx) error {
	raw := c.Params("*")
	target, err := url.PathUnescape(raw)
	if err != nil || target == "" {
		return utils.ValidationError("invalid url parameter", err)
	}

	removed, err := h.client.Remove(target)
	if err != nil {
		return err
	}
	if !removed {
		return utils.NotFoundError("url not on blacklist", nil)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
