package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"mailfan/storage"
	"mailfan/utils"
)

// LabelHandler handles label namespace requests. Everything here is scoped
// to the caller's own namespace.
type LabelHandler struct {
	store *storage.Store
}

// NewLabelHandler creates a new label handler
func NewLabelHandler(store *storage.Store) *LabelHandler {
	return &LabelHandler{store: store}
}

type labelRequest struct {
	Name string `json:"name"`
}

// GetLabels retrieves all labels for the current user
func (h *LabelHandler) GetLabels(c *fiber.Ctx) error {
	caller := c.Locals("email").(string)

	labels, err := h.store.Labels(caller)
	if err != nil {
		return utils.InternalServerError("failed to retrieve labels", err)
	}
	return c.JSON(fiber.Map{
		"labels": labels,
	})
}

// GetLabel retrieves a single label
func (h *LabelHandler) GetLabel(c *fiber.Ctx) error {
	caller := c.Locals("email").(string)

	label, err := h.store.GetLabel(caller, c.Params("id"))
	if err == storage.ErrNotFound {
		return utils.NotFoundError("label not found", nil)
	}
	if err != nil {
		return utils.InternalServerError("label lookup failed", err)
	}
	return c.JSON(label)
}

// CreateLabel creates a new label
func (h *LabelHandler) CreateLabel(c *fiber.Ctx) error {
	caller := c.Locals("email").(string)

	var req labelRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ValidationError("invalid request body", err)
	}
	if strings.TrimSpace(req.Name) == "" {
		return utils.ValidationError("label name required", nil)
	}

	label, err := h.store.CreateLabel(caller, req.Name)
	if err == storage.ErrDuplicateName {
		return utils.DuplicateNameError("a label with this name already exists")
	}
	if err != nil {
		return utils.InternalServerError("failed to create label", err)
	}

	return c.Status(201).JSON(fiber.Map{
		"message": "Label created",
		"label":   label,
	})
}

// RenameLabel changes a label's display name
func (h *LabelHandler) RenameLabel(c *fiber.Ctx) error {
	caller := c.Locals("email").(string)

	var req labelRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ValidationError("invalid request body", err)
	}
	if strings.TrimSpace(req.Name) == "" {
		return utils.ValidationError("label name required", nil)
	}

	label, err := h.store.RenameLabel(caller, c.Params("id"), req.Name)
	if err == storage.ErrNotFound {
		return utils.NotFoundError("label not found", nil)
	}
	if err == storage.ErrDuplicateName {
		return utils.DuplicateNameError("a label with this name already exists")
	}
	if err != nil {
		return utils.InternalServerError("failed to rename label", err)
	}

	return c.JSON(fiber.Map{
		"message": "Label updated",
		"label":   label,
	})
}

// DeleteLabel removes a label from the caller's namespace. Mail copies that
// reference the identifier keep it as a dangling reference.
func (h *LabelHandler) DeleteLabel(c *fiber.Ctx) error {
	caller := c.Locals("email").(string)

	deleted, err := h.store.DeleteLabel(caller, c.Params("id"))
	if err != nil {
		return utils.InternalServerError("failed to delete label", err)
	}
	if !deleted {
		return utils.NotFoundError("label not found", nil)
	}

	return c.JSON(fiber.Map{
		"message": "Label deleted",
	})
}
