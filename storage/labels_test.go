package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateLabelDuplicateNameCaseInsensitive(t *testing.T) {
	store := newTestStore(t)

	label, err := store.CreateLabel("alice@x.com", "Spam")
	require.NoError(t, err)
	assert.Equal(t, "Spam", label.Name)
	assert.NotEmpty(t, label.ID)

	_, err = store.CreateLabel("alice@x.com", "spam")
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = store.CreateLabel("alice@x.com", "  SPAM  ")
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestSameLabelNameDifferentUsers(t *testing.T) {
	store := newTestStore(t)

	a, err := store.CreateLabel("alice@x.com", "Spam")
	require.NoError(t, err)
	b, err := store.CreateLabel("bob@x.com", "spam")
	require.NoError(t, err)

	// Distinct identifiers, and neither resolves in the other's namespace.
	assert.NotEqual(t, a.ID, b.ID)
	_, err = store.GetLabel("bob@x.com", a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetLabel("alice@x.com", b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLabelsPreserveStoredCasing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateLabel("alice@x.com", "  Work Stuff ")
	require.NoError(t, err)

	label, err := store.FindLabelByName("alice@x.com", "work stuff")
	require.NoError(t, err)
	assert.Equal(t, "Work Stuff", label.Name)
}

func TestRenameLabel(t *testing.T) {
	store := newTestStore(t)

	label, err := store.CreateLabel("alice@x.com", "Old")
	require.NoError(t, err)
	other, err := store.CreateLabel("alice@x.com", "Taken")
	require.NoError(t, err)

	renamed, err := store.RenameLabel("alice@x.com", label.ID, "New")
	require.NoError(t, err)
	assert.Equal(t, label.ID, renamed.ID)
	assert.Equal(t, "New", renamed.Name)

	_, err = store.RenameLabel("alice@x.com", label.ID, "taken")
	assert.ErrorIs(t, err, ErrDuplicateName)

	// Renaming to its own name (different case) is allowed.
	_, err = store.RenameLabel("alice@x.com", other.ID, "TAKEN")
	assert.NoError(t, err)

	_, err = store.RenameLabel("alice@x.com", "no-such-id", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteLabel(t *testing.T) {
	store := newTestStore(t)

	label, err := store.CreateLabel("alice@x.com", "Trash")
	require.NoError(t, err)

	deleted, err := store.DeleteLabel("alice@x.com", label.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteLabel("alice@x.com", label.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = store.GetLabel("alice@x.com", label.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLabelsListedOldestFirst(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{"Inbox", "Spam", "Drafts"} {
		_, err := store.CreateLabel("alice@x.com", name)
		require.NoError(t, err)
	}

	labels, err := store.Labels("alice@x.com")
	require.NoError(t, err)
	require.Len(t, labels, 3)

	names := []string{labels[0].Name, labels[1].Name, labels[2].Name}
	assert.Equal(t, []string{"Inbox", "Spam", "Drafts"}, names)
}
