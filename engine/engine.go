// Package engine implements mail fan-out: it validates a send, resolves
// labels, gates the message on the URL blacklist, and writes the
// per-recipient mailbox copies.
package engine

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mailfan/metrics"
	"mailfan/models"
	"mailfan/storage"
	"mailfan/utils"
)

// Checker is the slice of the blacklist client the engine needs.
type Checker interface {
	Check(url string) (bool, error)
	Add(url string) error
}

// Store is the slice of the persistence layer delivery drives.
type Store interface {
	UserExists(email string) (bool, error)
	AppendMail(mail *models.Mail) error
	GetMail(id string) (*models.Mail, error)
	SetMailLabels(owner, id string, labelIDs []string) ([]string, error)
	GetLabel(user, id string) (*models.Label, error)
	FindLabelByName(user, name string) (*models.Label, error)
	CreateLabel(user, name string) (*models.Label, error)
}

// Engine orchestrates delivery against the store and the blacklist service.
type Engine struct {
	store   Store
	checker Checker
}

// New creates a fan-out engine.
func New(store Store, checker Checker) *Engine {
	return &Engine{store: store, checker: checker}
}

// SendRequest is a validated-to-be send or draft save.
type SendRequest struct {
	Sender     string
	Recipients []string
	Subject    string
	Content    string
	IsDraft    bool
	Labels     []string // label names or ids, resolved in the sender's namespace
}

// SendResult reports what a send produced.
type SendResult struct {
	Draft *models.Mail  // set when the request was a draft save
	Sent  []models.Mail // per-recipient delivered copies
	Spam  bool          // whole-message routing decision
}

// Send runs the delivery state machine: validate, resolve labels, then for
// drafts persist-and-return, otherwise extract URLs, consult the blacklist,
// pick one route for the entire message, and deliver per recipient.
func (e *Engine) Send(caller string, req SendRequest) (*SendResult, error) {
	if req.Sender != caller {
		return nil, utils.ForbiddenError("sender email does not match authenticated user", nil)
	}
	if ok, err := e.store.UserExists(req.Sender); err != nil {
		return nil, utils.InternalServerError("user lookup failed", err)
	} else if !ok {
		return nil, utils.ValidationError("sender does not exist", nil)
	}

	if !req.IsDraft {
		if len(req.Recipients) == 0 {
			return nil, utils.ValidationError("missing required fields", nil)
		}
		for _, r := range req.Recipients {
			if ok, err := e.store.UserExists(r); err != nil {
				return nil, utils.InternalServerError("user lookup failed", err)
			} else if !ok {
				return nil, utils.NotFoundError("recipient does not exist: "+r, nil).
					WithContext("recipient", r)
			}
		}
	}

	labelIDs := e.resolveLabels(req.Sender, req.Labels)

	if req.IsDraft {
		return e.saveDraft(req, labelIDs)
	}

	spam, err := e.blacklistGate(req.Subject + " " + req.Content)
	if err != nil {
		return nil, err
	}

	// Spam routing resolves a "Spam" label per recipient, in the recipient's
	// own namespace. All of them must resolve before anything is written:
	// the whole send aborts rather than delivering unlabeled spam.
	spamLabels := make(map[string]string)
	if spam {
		for _, r := range req.Recipients {
			label, err := e.resolveOrCreate(r, "Spam")
			if err != nil {
				return nil, utils.SpamLabelingError("could not provision spam label for "+r, err).
					WithContext("recipient", r)
			}
			spamLabels[r] = label.ID
		}
	}

	groupID := uuid.New().String()
	now := time.Now()

	var sent []models.Mail
	var failed []string
	for _, r := range req.Recipients {
		labels := labelIDs
		if spam {
			labels = []string{spamLabels[r]}
		}
		copyMail := models.Mail{
			ID:         uuid.New().String(),
			Owner:      r,
			Sender:     req.Sender,
			Recipient:  r,
			Recipients: req.Recipients,
			Subject:    req.Subject,
			Content:    req.Content,
			Labels:     labels,
			GroupID:    groupID,
			Timestamp:  now,
		}
		if err := e.store.AppendMail(&copyMail); err != nil {
			utils.Log.Errorw("mailbox write failed", "recipient", r, "group", groupID, "error", err)
			failed = append(failed, r)
			continue
		}
		sent = append(sent, copyMail)
	}

	// The sender keeps their own copy of the send, carrying the
	// sender-resolved label set regardless of routing. Outgoing tells it
	// apart from a received copy even when the sender mails themselves.
	own := models.Mail{
		ID:         uuid.New().String(),
		Owner:      req.Sender,
		Sender:     req.Sender,
		Recipient:  first(req.Recipients),
		Recipients: req.Recipients,
		Subject:    req.Subject,
		Content:    req.Content,
		Labels:     labelIDs,
		GroupID:    groupID,
		Timestamp:  now,
		Outgoing:   true,
	}
	if err := e.store.AppendMail(&own); err != nil {
		utils.Log.Errorw("sender copy write failed", "sender", req.Sender, "group", groupID, "error", err)
	}

	route := "inbox"
	if spam {
		route = "spam"
	}
	metrics.RecordDelivery(route, len(sent))

	result := &SendResult{Sent: sent, Spam: spam}
	if len(failed) > 0 {
		// Delivered copies stand; the failure must still surface.
		return result, utils.InternalServerError("delivery failed for some recipients", nil).
			WithContext("failed", failed).
			WithContext("delivered", len(sent))
	}
	return result, nil
}

// saveDraft stores one record in the sender's mailbox only. Drafts are never
// scanned against the blacklist and produce no recipient copies even when a
// recipient list was supplied.
func (e *Engine) saveDraft(req SendRequest, labelIDs []string) (*SendResult, error) {
	if drafts, err := e.resolveOrCreate(req.Sender, "Drafts"); err == nil {
		labelIDs = appendUnique(labelIDs, drafts.ID)
	} else {
		utils.Log.Warnw("drafts label resolution failed", "sender", req.Sender, "error", err)
	}

	draft := models.Mail{
		ID:         uuid.New().String(),
		Owner:      req.Sender,
		Sender:     req.Sender,
		Recipient:  first(req.Recipients),
		Recipients: req.Recipients,
		Subject:    req.Subject,
		Content:    req.Content,
		Labels:     labelIDs,
		GroupID:    uuid.New().String(),
		Timestamp:  time.Now(),
		IsDraft:    true,
	}
	if err := e.store.AppendMail(&draft); err != nil {
		return nil, utils.InternalServerError("failed to save draft", err)
	}
	metrics.RecordDelivery("draft", 1)
	return &SendResult{Draft: &draft}, nil
}

// blacklistGate checks every distinct URL concurrently and waits for all
// answers before deciding. The message is blocked if any URL is listed; any
// check failure aborts the send instead of passing as clean.
func (e *Engine) blacklistGate(text string) (bool, error) {
	urls := distinct(utils.ExtractURLs(text))
	if len(urls) == 0 {
		return false, nil
	}

	var wg sync.WaitGroup
	listed := make([]bool, len(urls))
	errs := make([]error, len(urls))
	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			listed[i], errs[i] = e.checker.Check(url)
		}(i, url)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			utils.Log.Errorw("blacklist check failed", "url", urls[i], "error", err)
			return false, err
		}
	}
	for _, hit := range listed {
		if hit {
			return true, nil
		}
	}
	return false, nil
}

// resolveLabels maps requested label names or ids to ids in the user's
// namespace, creating unknown names on demand. Values that cannot be
// resolved are dropped, not fatal. An empty request defaults to "Inbox".
func (e *Engine) resolveLabels(user string, values []string) []string {
	if len(values) == 0 {
		values = []string{"Inbox"}
	}

	var ids []string
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if label, err := e.store.GetLabel(user, v); err == nil {
			ids = appendUnique(ids, label.ID)
			continue
		}
		label, err := e.resolveOrCreate(user, v)
		if err != nil {
			utils.Log.Warnw("dropping unresolvable label", "user", user, "label", v, "error", err)
			continue
		}
		ids = appendUnique(ids, label.ID)
	}
	return ids
}

// resolveOrCreate finds a label by name or creates it, absorbing the
// duplicate-name race where another request creates it first.
func (e *Engine) resolveOrCreate(user, name string) (*models.Label, error) {
	if label, err := e.store.FindLabelByName(user, name); err == nil {
		return label, nil
	} else if err != storage.ErrNotFound {
		return nil, err
	}
	label, err := e.store.CreateLabel(user, name)
	if err == storage.ErrDuplicateName {
		return e.store.FindLabelByName(user, name)
	}
	return label, err
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func distinct(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
