package storage

import (
	"encoding/binary"
	"encoding/json"
	"strings"

	"go.etcd.io/bbolt"

	"mailfan/models"
)

// indexEntry locates a mail copy: which mailbox holds it and under which key.
type indexEntry struct {
	Owner string `json:"owner"`
	Key   []byte `json:"key"`
}

// AppendMail writes a mail copy into its owner's mailbox collection and
// records it in the id index. Insertion order is preserved via the bucket
// sequence number.
func (s *Store) AppendMail(mail *models.Mail) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		box, err := userBucketIn(tx, mailboxBucket, mail.Owner)
		if err != nil {
			return err
		}

		seq, err := box.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)

		data, err := json.Marshal(mail)
		if err != nil {
			return err
		}
		if err := box.Put(key, data); err != nil {
			return err
		}

		entry, err := json.Marshal(indexEntry{Owner: mail.Owner, Key: key})
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(mailIndex)).Put([]byte(mail.ID), entry)
	})
}

// GetMail retrieves a mail copy by id, wherever it is held. The copy's Owner
// field tells the caller whose mailbox it belongs to.
func (s *Store) GetMail(id string) (*models.Mail, error) {
	var mail models.Mail

	err := s.db.View(func(tx *bbolt.Tx) error {
		data, entry, err := lookupMail(tx, id)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &mail); err != nil {
			return err
		}
		mail.Owner = entry.Owner
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &mail, nil
}

// UpdateMail rewrites a mail copy in place.
func (s *Store) UpdateMail(mail *models.Mail) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, entry, err := lookupMail(tx, mail.ID)
		if err != nil {
			return err
		}
		box, err := userBucketIn(tx, mailboxBucket, entry.Owner)
		if err != nil {
			return err
		}
		data, err := json.Marshal(mail)
		if err != nil {
			return err
		}
		return box.Put(entry.Key, data)
	})
}

// DeleteMail removes a copy from the given owner's mailbox only. Copies of
// the same send held by other mailboxes are untouched. Returns ErrNotFound
// when the id does not resolve to a copy owned by owner.
func (s *Store) DeleteMail(owner, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, entry, err := lookupMail(tx, id)
		if err != nil {
			return err
		}
		if entry.Owner != owner {
			return ErrNotFound
		}
		box, err := userBucketIn(tx, mailboxBucket, owner)
		if err != nil {
			return err
		}
		if err := box.Delete(entry.Key); err != nil {
			return err
		}
		return tx.Bucket([]byte(mailIndex)).Delete([]byte(id))
	})
}

// Mails returns every copy in the owner's mailbox in insertion order.
func (s *Store) Mails(owner string) ([]models.Mail, error) {
	var mails []models.Mail

	err := s.db.View(func(tx *bbolt.Tx) error {
		box, _ := userBucketIn(tx, mailboxBucket, owner)
		if box == nil {
			return nil
		}
		return box.ForEach(func(k, v []byte) error {
			var mail models.Mail
			if err := json.Unmarshal(v, &mail); err != nil {
				return err
			}
			mail.Owner = owner
			mails = append(mails, mail)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return mails, nil
}

// SetMailLabels replaces the label set on the owner's copy and returns the
// previous set.
func (s *Store) SetMailLabels(owner, id string, labelIDs []string) ([]string, error) {
	var previous []string

	err := s.db.Update(func(tx *bbolt.Tx) error {
		data, entry, err := lookupMail(tx, id)
		if err != nil {
			return err
		}
		if entry.Owner != owner {
			return ErrNotFound
		}

		var mail models.Mail
		if err := json.Unmarshal(data, &mail); err != nil {
			return err
		}
		previous = mail.Labels
		mail.Labels = labelIDs

		box, err := userBucketIn(tx, mailboxBucket, owner)
		if err != nil {
			return err
		}
		updated, err := json.Marshal(mail)
		if err != nil {
			return err
		}
		return box.Put(entry.Key, updated)
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

// SearchMails runs a case-insensitive substring match over subject, content,
// sender, and recipients of the owner's copies.
func (s *Store) SearchMails(owner, query string) ([]models.Mail, error) {
	q := strings.ToLower(query)

	mails, err := s.Mails(owner)
	if err != nil {
		return nil, err
	}

	var results []models.Mail
	for _, mail := range mails {
		recipients := strings.ToLower(strings.Join(mail.Recipients, " "))
		if strings.Contains(strings.ToLower(mail.Subject), q) ||
			strings.Contains(strings.ToLower(mail.Content), q) ||
			strings.Contains(strings.ToLower(mail.Sender), q) ||
			strings.Contains(recipients, q) {
			results = append(results, mail)
		}
	}
	return results, nil
}

// lookupMail resolves an id through the index to the stored copy.
func lookupMail(tx *bbolt.Tx, id string) ([]byte, *indexEntry, error) {
	raw := tx.Bucket([]byte(mailIndex)).Get([]byte(id))
	if raw == nil {
		return nil, nil, ErrNotFound
	}
	var entry indexEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, nil, err
	}
	box, _ := userBucketIn(tx, mailboxBucket, entry.Owner)
	if box == nil {
		return nil, nil, ErrNotFound
	}
	data := box.Get(entry.Key)
	if data == nil {
		return nil, nil, ErrNotFound
	}
	return data, &entry, nil
}
