package blacklist

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"strings"
	"sync"

	"mailfan/utils"
)

const stateFile = "bloom.state"

// Server is the blacklist service: a bloom filter fast path with the exact
// URL store as the authority. It answers one request per connection and
// closes after the response is written.
type Server struct {
	mu     sync.Mutex // guards filter and its state file
	filter *BloomFilter
	store  *URLStore

	statePath string
}

// NewServer builds a service over dataDir, loading any saved filter state.
// A missing or corrupted state file starts the filter clean; existing store
// entries are replayed into it so check answers stay consistent.
func NewServer(dataDir string, bloomBits uint64, bloomHash int) (*Server, error) {
	store, err := OpenURLStore(dataDir)
	if err != nil {
		return nil, err
	}

	s := &Server{
		filter:    NewBloomFilter(bloomBits, bloomHash),
		store:     store,
		statePath: filepath.Join(dataDir, stateFile),
	}

	if err := s.filter.LoadFromFile(s.statePath); err != nil {
		utils.Log.Infow("starting with a clean bloom filter", "reason", err)
		s.filter = NewBloomFilter(bloomBits, bloomHash)
		entries, err := store.All()
		if err != nil {
			store.Close()
			return nil, err
		}
		for _, e := range entries {
			s.filter.Add(e.URL)
		}
	}

	return s, nil
}

// Close releases the underlying store.
func (s *Server) Close() error {
	return s.store.Close()
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// ListenAndServe listens on addr and serves.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	utils.Log.Infow("blacklist service listening", "addr", ln.Addr().String())
	return s.Serve(ln)
}

// handleConn reads one request line, writes the response, and closes.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && err != io.EOF {
		return
	}

	io.WriteString(conn, s.respond(line))
}

// respond maps one request line to its wire response.
//
// The grammar mixes numeric codes with a verb (1=add, 2=check, DELETE);
// it matches the peer the protocol was built against and stays that way.
func (s *Server) respond(line string) string {
	args := strings.Fields(line)
	if len(args) != 2 {
		return "400 Bad Request\n"
	}
	cmd, url := args[0], args[1]

	if !validURL(url) {
		return "400 Bad Request\n"
	}

	switch cmd {
	case "1":
		return s.handleAdd(url)
	case "2":
		return s.handleCheck(url)
	case "DELETE":
		return s.handleRemove(url)
	}
	return "400 Bad Request\n"
}

func (s *Server) handleAdd(url string) string {
	s.mu.Lock()
	s.filter.Add(url)
	if err := s.filter.SaveToFile(s.statePath); err != nil {
		utils.Log.Errorw("failed to save bloom state", "error", err)
	}
	s.mu.Unlock()

	if _, err := s.store.Put(url, "", "manual spam report"); err != nil {
		utils.Log.Errorw("failed to store blacklisted url", "url", url, "error", err)
		return "400 Bad Request\n"
	}
	return "201 Created\n"
}

func (s *Server) handleCheck(url string) string {
	s.mu.Lock()
	inFilter := s.filter.Has(url)
	s.mu.Unlock()

	// When the filter already rules the URL out there is nothing to confirm
	// and the verdict is a single "false", as the peer service answers.
	if !inFilter {
		return "200 OK\nfalse\n"
	}

	inStore, err := s.store.Has(url)
	if err != nil {
		utils.Log.Errorw("url store lookup failed", "url", url, "error", err)
		return "400 Bad Request\n"
	}
	return fmt.Sprintf("200 OK\ntrue %v\n", inStore)
}

func (s *Server) handleRemove(url string) string {
	// The filter keeps its bits; the exact store is the authority, so a
	// removed URL reports "true false" on later checks.
	removed, err := s.store.Remove(url)
	if err != nil {
		utils.Log.Errorw("url store remove failed", "url", url, "error", err)
		return "400 Bad Request\n"
	}
	if !removed {
		return "404 Not Found\n"
	}
	return "204 No Content\n"
}

func validURL(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}
