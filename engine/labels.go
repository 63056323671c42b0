package engine

import (
	"strings"

	"mailfan/storage"
	"mailfan/utils"
)

// SetLabelsForUser replaces the label set on the caller's copy of a mail.
// Unlike delivery-time resolution this never creates labels: every supplied
// name must already exist in the caller's namespace. When the new set adds a
// "spam" label that was not there before, the mail's URLs are registered
// with the blacklist service, best-effort.
func (e *Engine) SetLabelsForUser(caller, mailID string, labelNames []string) ([]string, error) {
	mail, err := e.store.GetMail(mailID)
	if err == storage.ErrNotFound {
		return nil, utils.NotFoundError("mail not found", nil)
	}
	if err != nil {
		return nil, utils.InternalServerError("mail lookup failed", err)
	}
	if mail.Owner != caller {
		return nil, utils.ForbiddenError("not authorized for this mail", nil)
	}

	var ids []string
	var invalid []string
	newHasSpam := false
	for _, name := range labelNames {
		label, err := e.store.FindLabelByName(caller, name)
		if err == storage.ErrNotFound {
			invalid = append(invalid, name)
			continue
		}
		if err != nil {
			return nil, utils.InternalServerError("label lookup failed", err)
		}
		if strings.EqualFold(strings.TrimSpace(label.Name), "spam") {
			newHasSpam = true
		}
		ids = appendUnique(ids, label.ID)
	}
	if len(invalid) > 0 {
		return nil, utils.UnknownLabelError("invalid labels for user: " + strings.Join(invalid, ", "))
	}

	previous, err := e.store.SetMailLabels(caller, mailID, ids)
	if err != nil {
		return nil, utils.InternalServerError("failed to update labels", err)
	}

	if newHasSpam && !e.hasSpamLabel(caller, previous) {
		e.reportSpam(mail.Subject + " " + mail.Content)
	}
	return ids, nil
}

// hasSpamLabel reports whether any of the label ids resolves to a label
// named "spam" in the user's namespace. Dangling ids are skipped.
func (e *Engine) hasSpamLabel(user string, labelIDs []string) bool {
	for _, id := range labelIDs {
		label, err := e.store.GetLabel(user, id)
		if err != nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(label.Name), "spam") {
			return true
		}
	}
	return false
}

// reportSpam registers each distinct URL with the blacklist service. The
// label change has already succeeded, so failures are logged, not returned.
func (e *Engine) reportSpam(text string) {
	for _, url := range distinct(utils.ExtractURLs(text)) {
		if err := e.checker.Add(url); err != nil {
			utils.Log.Errorw("failed to add url to blacklist", "url", url, "error", err)
			continue
		}
		utils.Log.Infow("url added to blacklist", "url", url)
	}
}
