// Package sse provides Server-Sent Events client management for real-time communication.
package sse

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/the-feed/internal/config"
)

var sseLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	sseLogger = l
}

// Client is one open event stream, bound to a composer session.
type Client struct {
	Msg     chan string
	Session string
}

type SSEClients struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	closed    chan struct{}
	closeOnce sync.Once
}

func NewSSEClients() *SSEClients {
	return &SSEClients{
		clients: make(map[*Client]bool),
		closed:  make(chan struct{}),
	}
}

// Close ends every open stream. Safe to call more than once.
func (s *SSEClients) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

func (s *SSEClients) Add(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *SSEClients) Delete(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	close(client.Msg)
}

func (s *SSEClients) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast sends msg as the event name to every client of session.
// Slow clients miss the message instead of blocking the sender.
func (s *SSEClients) Broadcast(session string, msg string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sent := 0
	for client := range s.clients {
		if client.Session == session {
			select {
			case client.Msg <- msg:
				sent++
			default:
			}
		}
	}
	return sent
}

// ServeHTTP streams the events of the session named by the composer cookie.
func (s *SSEClients) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(config.CookieComposerID)
	if err != nil || cookie.Value == "" {
		http.Error(w, config.ErrSessionRequired, http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set(config.HCType, "text/event-stream")
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Del("X-Content-Type-Options")

	fmt.Fprintf(w, "event: connected\ndata: SSE connection established\n\n")
	flusher.Flush()

	client := &Client{
		Msg:     make(chan string, 4),
		Session: cookie.Value,
	}
	s.Add(client)
	sseLogger.Debug().Str("session_id", client.Session).Msg("SSE client connected")

	defer func() {
		s.Delete(client)
		sseLogger.Debug().Str("session_id", client.Session).Msg("SSE client disconnected")
	}()

	done := r.Context().Done()
	for {
		select {
		case msg := <-client.Msg:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg, msg)
			flusher.Flush()
		case <-done:
			return
		case <-s.closed:
			return
		}
	}
}
