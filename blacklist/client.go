package blacklist

import (
	"io"
	"net"
	"strings"
	"time"

	"mailfan/metrics"
	"mailfan/utils"
)

// Client speaks the line protocol of the blacklist service. Every call opens
// its own connection, writes one request line, reads until the peer closes,
// and parses the buffered response.
//
// Request grammar (kept exactly as the peer speaks it, numeric codes for
// add/check next to a DELETE verb):
//
//	1 <url>\n      add
//	2 <url>\n      check
//	DELETE <url>\n remove
type Client struct {
	addr    string
	timeout time.Duration
}

// NewClient returns a client for the service at addr. timeout bounds the
// dial plus the full read/write of a single call.
func NewClient(addr string, timeout time.Duration) *Client {
	return &Client{addr: addr, timeout: timeout}
}

// Check reports whether the URL is blacklisted. A connection or protocol
// failure is returned as an error, never folded into false: a network outage
// must not read as "not blacklisted".
func (c *Client) Check(url string) (bool, error) {
	resp, err := c.roundTrip("2 " + url)
	if err != nil {
		metrics.RecordBlacklistCall("check", "error")
		return false, err
	}

	lines := strings.Split(strings.TrimRight(resp, "\n"), "\n")
	if len(lines) < 2 || lines[0] != "200 OK" {
		metrics.RecordBlacklistCall("check", "error")
		return false, utils.ProtocolError("unexpected blacklist check response", nil).
			WithContext("response", resp)
	}

	// Two tokens: bloom filter verdict, then the exact store's. Only the
	// conjunction of two literal "true" tokens is a confirmed hit; the
	// service answers a bare "false" when the filter already rules it out.
	verdict := strings.Fields(lines[1])
	if len(verdict) == 0 {
		metrics.RecordBlacklistCall("check", "error")
		return false, utils.ProtocolError("empty blacklist check verdict", nil).
			WithContext("response", resp)
	}
	listed := len(verdict) >= 2 && verdict[0] == "true" && verdict[1] == "true"
	metrics.RecordBlacklistCall("check", boolResult(listed))
	return listed, nil
}

// Add registers the URL with the service. The service answers 201 Created
// whether or not the URL was already present.
func (c *Client) Add(url string) error {
	resp, err := c.roundTrip("1 " + url)
	if err != nil {
		metrics.RecordBlacklistCall("add", "error")
		return err
	}
	if strings.TrimRight(resp, "\n") != "201 Created" {
		metrics.RecordBlacklistCall("add", "error")
		return utils.ProtocolError("unexpected blacklist add response", nil).
			WithContext("response", resp)
	}
	metrics.RecordBlacklistCall("add", "ok")
	return nil
}

// Remove deletes the URL from the service. Returns false when the service
// had no such entry.
func (c *Client) Remove(url string) (bool, error) {
	resp, err := c.roundTrip("DELETE " + url)
	if err != nil {
		metrics.RecordBlacklistCall("remove", "error")
		return false, err
	}
	switch strings.TrimRight(resp, "\n") {
	case "204 No Content":
		metrics.RecordBlacklistCall("remove", "removed")
		return true, nil
	case "404 Not Found":
		metrics.RecordBlacklistCall("remove", "not_found")
		return false, nil
	}
	metrics.RecordBlacklistCall("remove", "error")
	return false, utils.ProtocolError("unexpected blacklist remove response", nil).
		WithContext("response", resp)
}

// roundTrip performs one open-write-read-close exchange. The connection is
// released on every exit path.
func (c *Client) roundTrip(request string) (string, error) {
	if strings.ContainsAny(request, "\r\n") {
		return "", utils.ValidationError("URL must not contain line breaks", nil)
	}

	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.Dial("tcp", c.addr)
	if err != nil {
		return "", utils.ConnectionError("cannot reach blacklist service", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return "", utils.ConnectionError("cannot set blacklist socket deadline", err)
	}

	if _, err := io.WriteString(conn, request+"\n"); err != nil {
		return "", utils.ConnectionError("blacklist request write failed", err)
	}

	// The service half-closes once the response is fully written.
	data, err := io.ReadAll(conn)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return "", utils.ProtocolError("blacklist service response timed out", err)
		}
		return "", utils.ConnectionError("blacklist response read failed", err)
	}
	if len(data) == 0 {
		return "", utils.ProtocolError("blacklist service closed without responding", nil)
	}
	return string(data), nil
}

func boolResult(listed bool) string {
	if listed {
		return "listed"
	}
	return "clean"
}
