package api

import (
	"sort"

	"github.com/gofiber/fiber/v2"

	"mailfan/engine"
	"mailfan/models"
	"mailfan/storage"
	"mailfan/utils"
)

// MailHandler handles mailbox requests
type MailHandler struct {
	store  *storage.Store
	engine *engine.Engine
}

// NewMailHandler creates a new mail handler
func NewMailHandler(store *storage.Store, eng *engine.Engine) *MailHandler {
	return &MailHandler{store: store, engine: eng}
}

// createMailRequest accepts both the legacy single-recipient form and the
// recipient list form.
type createMailRequest struct {
	Sender     string   `json:"sender"`
	Recipient  string   `json:"recipient"`
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Content    string   `json:"content"`
	IsDraft    bool     `json:"isDraft"`
	Labels     []string `json:"labels"`
}

// CreateMail sends a message or saves a draft.
func (h *MailHandler) CreateMail(c *fiber.Ctx) error {
	caller := c.Locals("email").(string)

	var req createMailRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ValidationError("invalid request body", err)
	}

	recipients := req.Recipients
	if len(recipients) == 0 && req.Recipient != "" {
		recipients = []string{req.Recipient}
	}

	result, err := h.engine.Send(caller, engine.SendRequest{
		Sender:     req.Sender,
		Recipients: recipients,
		Subject:    req.Subject,
		Content:    req.Content,
		IsDraft:    req.IsDraft,
		Labels:     req.Labels,
	})
	if err != nil {
		return err
	}

	if result.Draft != nil {
		return c.Status(201).JSON(fiber.Map{
			"message": "Draft saved",
			"mail":    result.Draft,
		})
	}

	message := "Mail sent successfully"
	if result.Spam {
		message = "Mail sent to spam"
	}
	return c.Status(201).JSON(fiber.Map{
		"message": message,
		"sent":    result.Sent,
	})
}

// GetMails lists the caller's mailbox, split into inbox and sent. Drafts are
// excluded from the inbox listing.
func (h *MailHandler) GetMails(c *fiber.Ctx) error {
	caller := c.Locals("email").(string)

	mails, err := h.store.Mails(caller)
	if err != nil {
		return utils.InternalServerError("failed to fetch mails", err)
	}

	inbox := []models.Mail{}
	sent := []models.Mail{}
	drafts := []models.Mail{}
	for _, mail := range mails {
		switch {
		case mail.IsDraft:
			drafts = append(drafts, mail)
		case mail.Outgoing:
			sent = append(sent, mail)
		default:
			// Received copies, including the recipient copy of a
			// self-addressed send.
			inbox = append(inbox, mail)
		}
	}

	recent := make([]models.Mail, len(inbox))
	copy(recent, inbox)
	sort.Slice(recent, func(i, j int) bool {
		return recent[i].Timestamp.After(recent[j].Timestamp)
	})
	if len(recent) > 50 {
		recent = recent[:50]
	}

	recentMails := make([]models.MailSummary, 0, len(recent))
	for _, mail := range recent {
		recentMails = append(recentMails, models.MailSummary{
			ID:         mail.ID,
			Subject:    mail.Subject,
			Timestamp:  mail.Timestamp,
			Direction:  "received",
			OtherParty: models.Party{Email: mail.Sender},
			Preview:    utils.PreviewText(mail.Content, 100),
		})
	}

	return c.JSON(fiber.Map{
		"message":      "Mails fetched successfully",
		"inbox":        inbox,
		"sent":         sent,
		"drafts":       drafts,
		"recent_mails": recentMails,
	})
}

// GetMailByID returns a single record if the caller is its sender or one of
// its recipients.
func (h *MailHandler) GetMailByID(c *fiber.Ctx) error {
	caller := c.Locals("email").(string)
	id := c.Params("id")

	mail, err := h.loadMail(id)
	if err != nil {
		return err
	}
	if !participant(mail, caller) {
		return utils.ForbiddenError("you are not authorized to view this mail", nil)
	}

	labels := mail.Labels
	if mail.Owner != caller {
		labels = []string{} // labels belong to the copy's owner, not the viewer
	}

	return c.JSON(fiber.Map{
		"id":         mail.ID,
		"sender":     models.Party{Email: mail.Sender},
		"recipient":  models.Party{Email: mail.Recipient},
		"recipients": mail.Recipients,
		"subject":    mail.Subject,
		"content":    mail.Content,
		"timestamp":  mail.Timestamp,
		"labels":     labels,
	})
}

// UpdateMail edits subject or content. Sender-only.
func (h *MailHandler) UpdateMail(c *fiber.Ctx) error {
	caller := c.Locals("email").(string)
	id := c.Params("id")

	var req struct {
		Subject *string `json:"subject"`
		Content *string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.ValidationError("invalid request body", err)
	}
	if req.Subject == nil && req.Content == nil {
		return utils.ValidationError("nothing to update", nil)
	}

	mail, err := h.loadMail(id)
	if err != nil {
		return err
	}
	if mail.Sender != caller {
		return utils.ForbiddenError("only sender may edit subject or content", nil)
	}

	if req.Subject != nil {
		mail.Subject = *req.Subject
	}
	if req.Content != nil {
		mail.Content = *req.Content
	}
	if err := h.store.UpdateMail(mail); err != nil {
		return utils.InternalServerError("failed to update mail", err)
	}

	return c.JSON(fiber.Map{
		"message": "Mail updated",
		"mail":    mail,
	})
}

// DeleteMail removes a copy from the caller's own mailbox only; other
// holders keep theirs.
func (h *MailHandler) DeleteMail(c *fiber.Ctx) error {
	caller := c.Locals("email").(string)
	id := c.Params("id")

	mail, err := h.loadMail(id)
	if err != nil {
		return err
	}
	if mail.Owner != caller {
		return utils.ForbiddenError("not authorized to delete this mail", nil)
	}

	if err := h.store.DeleteMail(caller, id); err != nil {
		return utils.InternalServerError("failed to delete mail", err)
	}
	return c.JSON(fiber.Map{
		"message": "Mail deleted successfully",
	})
}

// SearchMails runs a substring search over the caller's copies, one result
// per logical send.
func (h *MailHandler) SearchMails(c *fiber.Ctx) error {
	caller := c.Locals("email").(string)

	query := c.Query("q")
	if query == "" {
		return utils.ValidationError("missing search query", nil)
	}

	matches, err := h.store.SearchMails(caller, query)
	if err != nil {
		return utils.InternalServerError("search failed", err)
	}
	if len(matches) == 0 {
		return utils.NotFoundError("no matching mails found", nil)
	}

	// One hit per group identifier.
	seen := make(map[string]bool)
	results := []models.SearchResult{}
	for _, mail := range matches {
		key := mail.GroupID
		if key == "" {
			key = mail.ID
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		direction := "received"
		if mail.Sender == caller {
			direction = "sent"
		}
		recipients := mail.Recipients
		if len(recipients) == 0 && mail.Recipient != "" {
			recipients = []string{mail.Recipient}
		}
		results = append(results, models.SearchResult{
			ID:         mail.ID,
			Subject:    mail.Subject,
			Timestamp:  mail.Timestamp,
			Direction:  direction,
			Sender:     mail.Sender,
			Recipients: recipients,
			Content:    mail.Content,
		})
	}

	return c.JSON(results)
}

// UpdateMailLabels replaces the label set on the caller's copy.
func (h *MailHandler) UpdateMailLabels(c *fiber.Ctx) error {
	caller := c.Locals("email").(string)
	id := c.Params("id")

	var req struct {
		Labels []string `json:"labels"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.ValidationError("invalid request body", err)
	}
	if req.Labels == nil {
		return utils.ValidationError("labels must be an array", nil)
	}

	labels, err := h.engine.SetLabelsForUser(caller, id, req.Labels)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"message": "Labels updated",
		"labels":  labels,
	})
}

func (h *MailHandler) loadMail(id string) (*models.Mail, error) {
	if id == "" {
		return nil, utils.ValidationError("missing mail ID", nil)
	}
	mail, err := h.store.GetMail(id)
	if err == storage.ErrNotFound {
		return nil, utils.NotFoundError("mail not found", nil)
	}
	if err != nil {
		return nil, utils.InternalServerError("mail lookup failed", err)
	}
	return mail, nil
}

func participant(mail *models.Mail, email string) bool {
	if mail.Sender == email || mail.Recipient == email || mail.Owner == email {
		return true
	}
	for _, r := range mail.Recipients {
		if r == email {
			return true
		}
	}
	return false
}
