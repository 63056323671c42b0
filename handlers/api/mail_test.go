package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailfan/blacklist"
	"mailfan/config"
	"mailfan/engine"
	"mailfan/middleware"
	"mailfan/storage"
)

const testSecret = "test-secret"

type testEnv struct {
	app    *fiber.App
	store  *storage.Store
	client *blacklist.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.SeedUsers([]string{"alice@x.com", "bob@x.com", "carol@x.com"}))

	srv, err := blacklist.NewServer(t.TempDir(), 1<<12, 2)
	require.NoError(t, err)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(ln)
	t.Cleanup(func() {
		ln.Close()
		srv.Close()
	})

	cfg := &config.Config{}
	cfg.Server.JWTSecret = testSecret
	cfg.Server.RateLimit = 1000
	cfg.Server.RateWindowSec = 60

	client := blacklist.NewClient(ln.Addr().String(), 2*time.Second)
	eng := engine.New(store, client)
	app := NewApp(cfg, store, eng, client)

	return &testEnv{app: app, store: store, client: client}
}

func (e *testEnv) request(t *testing.T, method, path, as string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != "" {
		token, err := middleware.GenerateToken(as, testSecret)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, 10000)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out), "body: %s", data)
}

type mailboxView struct {
	Inbox  []json.RawMessage `json:"inbox"`
	Sent   []json.RawMessage `json:"sent"`
	Drafts []json.RawMessage `json:"drafts"`
	Recent []struct {
		ID      string `json:"id"`
		Preview string `json:"preview"`
	} `json:"recent_mails"`
}

func TestRequiresBearerToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, "GET", "/mails", "", nil)
	assert.Equal(t, 401, resp.StatusCode)

	resp = env.request(t, "GET", "/health", "", nil)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestSendFanOutOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, "POST", "/mails", "alice@x.com", fiber.Map{
		"sender":     "alice@x.com",
		"recipients": []string{"bob@x.com", "carol@x.com"},
		"subject":    "hello",
		"content":    "clean body",
	})
	require.Equal(t, 201, resp.StatusCode)

	var body struct {
		Message string `json:"message"`
		Sent    []struct {
			ID      string `json:"id"`
			GroupID string `json:"groupId"`
		} `json:"sent"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "Mail sent successfully", body.Message)
	require.Len(t, body.Sent, 2)
	assert.Equal(t, body.Sent[0].GroupID, body.Sent[1].GroupID)

	for _, user := range []string{"bob@x.com", "carol@x.com"} {
		resp := env.request(t, "GET", "/mails", user, nil)
		require.Equal(t, 200, resp.StatusCode)
		var view mailboxView
		decode(t, resp, &view)
		assert.Len(t, view.Inbox, 1, "inbox of %s", user)
		assert.Len(t, view.Recent, 1)
	}
}

func TestLegacySingleRecipientForm(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, "POST", "/mails", "alice@x.com", fiber.Map{
		"sender":    "alice@x.com",
		"recipient": "bob@x.com",
		"subject":   "one",
		"content":   "recipient form",
	})
	require.Equal(t, 201, resp.StatusCode)

	var body struct {
		Sent []json.RawMessage `json:"sent"`
	}
	decode(t, resp, &body)
	assert.Len(t, body.Sent, 1)
}

func TestSendValidationOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	// Sender mismatch.
	resp := env.request(t, "POST", "/mails", "bob@x.com", fiber.Map{
		"sender":     "alice@x.com",
		"recipients": []string{"bob@x.com"},
	})
	assert.Equal(t, 403, resp.StatusCode)

	// No recipients.
	resp = env.request(t, "POST", "/mails", "alice@x.com", fiber.Map{
		"sender": "alice@x.com",
	})
	assert.Equal(t, 400, resp.StatusCode)

	// Unknown recipient.
	resp = env.request(t, "POST", "/mails", "alice@x.com", fiber.Map{
		"sender":     "alice@x.com",
		"recipients": []string{"ghost@x.com"},
	})
	assert.Equal(t, 404, resp.StatusCode)
}

func TestDraftStaysInSenderMailbox(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, "POST", "/mails", "alice@x.com", fiber.Map{
		"sender":     "alice@x.com",
		"recipients": []string{"bob@x.com"},
		"subject":    "wip",
		"content":    "not ready",
		"isDraft":    true,
	})
	require.Equal(t, 201, resp.StatusCode)

	var body struct {
		Message string `json:"message"`
		Mail    struct {
			ID string `json:"id"`
		} `json:"mail"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "Draft saved", body.Message)
	assert.NotEmpty(t, body.Mail.ID)

	// Absent from the author's inbox listing, present under drafts.
	resp = env.request(t, "GET", "/mails", "alice@x.com", nil)
	var view mailboxView
	decode(t, resp, &view)
	assert.Empty(t, view.Inbox)
	assert.Len(t, view.Drafts, 1)

	// And no copy reached the recipient.
	resp = env.request(t, "GET", "/mails", "bob@x.com", nil)
	decode(t, resp, &view)
	assert.Empty(t, view.Inbox)
}

func TestSpamGateOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, "POST", "/blacklist", "alice@x.com", fiber.Map{
		"url": "http://bad.example/x",
	})
	require.Equal(t, 201, resp.StatusCode)

	resp = env.request(t, "POST", "/mails", "alice@x.com", fiber.Map{
		"sender":     "alice@x.com",
		"recipients": []string{"bob@x.com", "carol@x.com"},
		"subject":    "offer",
		"content":    "visit http://bad.example/x today",
	})
	require.Equal(t, 201, resp.StatusCode)

	var body struct {
		Message string `json:"message"`
		Sent    []struct {
			ID     string   `json:"id"`
			Labels []string `json:"labels"`
		} `json:"sent"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "Mail sent to spam", body.Message)
	require.Len(t, body.Sent, 2)

	// Uniform routing: every copy carries exactly one label, the holder's
	// own Spam label.
	for i, recipient := range []string{"bob@x.com", "carol@x.com"} {
		spam, err := env.store.FindLabelByName(recipient, "spam")
		require.NoError(t, err)
		assert.Equal(t, []string{spam.ID}, body.Sent[i].Labels)
	}

	// Removing the URL restores inbox routing.
	resp = env.request(t, "DELETE", "/blacklist/http:%2F%2Fbad.example%2Fx", "alice@x.com", nil)
	require.Equal(t, 204, resp.StatusCode)

	resp = env.request(t, "POST", "/mails", "alice@x.com", fiber.Map{
		"sender":     "alice@x.com",
		"recipients": []string{"bob@x.com"},
		"content":    "visit http://bad.example/x today",
	})
	require.Equal(t, 201, resp.StatusCode)
	var second struct {
		Message string `json:"message"`
	}
	decode(t, resp, &second)
	assert.Equal(t, "Mail sent successfully", second.Message)
}

func TestGetUpdateDeleteMail(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, "POST", "/mails", "alice@x.com", fiber.Map{
		"sender":     "alice@x.com",
		"recipients": []string{"bob@x.com"},
		"subject":    "v1",
		"content":    "first",
	})
	require.Equal(t, 201, resp.StatusCode)
	var sent struct {
		Sent []struct {
			ID string `json:"id"`
		} `json:"sent"`
	}
	decode(t, resp, &sent)
	mailID := sent.Sent[0].ID

	// Sender and recipient may read; a third party may not.
	resp = env.request(t, "GET", "/mails/"+mailID, "bob@x.com", nil)
	assert.Equal(t, 200, resp.StatusCode)
	resp = env.request(t, "GET", "/mails/"+mailID, "alice@x.com", nil)
	assert.Equal(t, 200, resp.StatusCode)
	resp = env.request(t, "GET", "/mails/"+mailID, "carol@x.com", nil)
	assert.Equal(t, 403, resp.StatusCode)
	resp = env.request(t, "GET", "/mails/nope", "alice@x.com", nil)
	assert.Equal(t, 404, resp.StatusCode)

	// Only the sender edits.
	resp = env.request(t, "PATCH", "/mails/"+mailID, "bob@x.com", fiber.Map{"subject": "v2"})
	assert.Equal(t, 403, resp.StatusCode)
	resp = env.request(t, "PATCH", "/mails/"+mailID, "alice@x.com", fiber.Map{"subject": "v2"})
	assert.Equal(t, 200, resp.StatusCode)

	// Deleting bob's copy leaves alice's sent copy alone.
	resp = env.request(t, "DELETE", "/mails/"+mailID, "bob@x.com", nil)
	assert.Equal(t, 200, resp.StatusCode)

	resp = env.request(t, "GET", "/mails", "alice@x.com", nil)
	var view mailboxView
	decode(t, resp, &view)
	assert.Len(t, view.Sent, 1)
}

func TestSelfSendShowsInInboxAndSent(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, "POST", "/mails", "alice@x.com", fiber.Map{
		"sender":     "alice@x.com",
		"recipients": []string{"alice@x.com"},
		"subject":    "note to self",
		"content":    "remember the thing",
	})
	require.Equal(t, 201, resp.StatusCode)

	// The received copy lands in the inbox and the sender copy under sent,
	// even though sender and recipient are the same mailbox.
	resp = env.request(t, "GET", "/mails", "alice@x.com", nil)
	var view mailboxView
	decode(t, resp, &view)
	assert.Len(t, view.Inbox, 1)
	assert.Len(t, view.Sent, 1)
	assert.Len(t, view.Recent, 1)
	assert.Empty(t, view.Drafts)
}

func TestSearchDeduplicatesByGroup(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, "POST", "/mails", "alice@x.com", fiber.Map{
		"sender":     "alice@x.com",
		"recipients": []string{"alice@x.com", "bob@x.com"},
		"subject":    "unique-needle",
		"content":    "x",
	})
	require.Equal(t, 201, resp.StatusCode)

	// Alice holds two copies of the send (received + sent); one hit comes back.
	resp = env.request(t, "GET", "/mails/search?q=unique-needle", "alice@x.com", nil)
	require.Equal(t, 200, resp.StatusCode)
	var results []struct {
		ID string `json:"id"`
	}
	decode(t, resp, &results)
	assert.Len(t, results, 1)

	resp = env.request(t, "GET", "/mails/search?q=no-such-thing", "alice@x.com", nil)
	assert.Equal(t, 404, resp.StatusCode)

	resp = env.request(t, "GET", "/mails/search", "alice@x.com", nil)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestLabelCRUDOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, "POST", "/labels", "alice@x.com", fiber.Map{"name": "Work"})
	require.Equal(t, 201, resp.StatusCode)
	var created struct {
		Label struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"label"`
	}
	decode(t, resp, &created)
	assert.Equal(t, "Work", created.Label.Name)

	// Case-insensitive duplicate in the same namespace.
	resp = env.request(t, "POST", "/labels", "alice@x.com", fiber.Map{"name": "work"})
	assert.Equal(t, 409, resp.StatusCode)

	// Same name for another user succeeds.
	resp = env.request(t, "POST", "/labels", "bob@x.com", fiber.Map{"name": "work"})
	assert.Equal(t, 201, resp.StatusCode)

	resp = env.request(t, "PATCH", "/labels/"+created.Label.ID, "alice@x.com", fiber.Map{"name": "Projects"})
	assert.Equal(t, 200, resp.StatusCode)

	resp = env.request(t, "GET", "/labels", "alice@x.com", nil)
	var list struct {
		Labels []struct {
			Name string `json:"name"`
		} `json:"labels"`
	}
	decode(t, resp, &list)
	require.Len(t, list.Labels, 1)
	assert.Equal(t, "Projects", list.Labels[0].Name)

	resp = env.request(t, "DELETE", "/labels/"+created.Label.ID, "alice@x.com", nil)
	assert.Equal(t, 200, resp.StatusCode)
	resp = env.request(t, "DELETE", "/labels/"+created.Label.ID, "alice@x.com", nil)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestManualSpamLabelFeedsBlacklist(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, "POST", "/mails", "alice@x.com", fiber.Map{
		"sender":     "alice@x.com",
		"recipients": []string{"bob@x.com"},
		"subject":    "look",
		"content":    "go to http://bad.example/z",
	})
	require.Equal(t, 201, resp.StatusCode)
	var sent struct {
		Sent []struct {
			ID string `json:"id"`
		} `json:"sent"`
	}
	decode(t, resp, &sent)
	mailID := sent.Sent[0].ID

	// Unknown names fail and list the offenders; nothing is created.
	resp = env.request(t, "PATCH", "/mails/"+mailID+"/labels", "bob@x.com", fiber.Map{
		"labels": []string{"Spam"},
	})
	assert.Equal(t, 400, resp.StatusCode)

	env.request(t, "POST", "/labels", "bob@x.com", fiber.Map{"name": "Spam"})

	resp = env.request(t, "PATCH", "/mails/"+mailID+"/labels", "bob@x.com", fiber.Map{
		"labels": []string{"Spam"},
	})
	require.Equal(t, 200, resp.StatusCode)

	// The mail's URL is now blacklisted: the next send carrying it goes to spam.
	listed, err := env.client.Check("http://bad.example/z")
	require.NoError(t, err)
	assert.True(t, listed)
}
