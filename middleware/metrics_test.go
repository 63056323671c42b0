package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailfan/utils"
)

func TestMetricsRecordsMappedErrorStatus(t *testing.T) {
	app := fiber.New()
	app.Use(Metrics())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return utils.NotFoundError("mail not found", nil)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	resp.Body.Close()

	// The histogram must carry the mapped 404, not the pre-error-handler 200.
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	found := false
	for _, fam := range families {
		if fam.GetName() != "http_request_duration_seconds" {
			continue
		}
		for _, m := range fam.GetMetric() {
			labels := make(map[string]string)
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["path"] == "/boom" && labels["status"] == "404" {
				found = true
			}
			if labels["path"] == "/boom" && labels["status"] == "200" {
				t.Errorf("failed request recorded as 200")
			}
		}
	}
	assert.True(t, found, "request mapped to 404 was not recorded")
}
