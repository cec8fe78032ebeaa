package handler

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Sockets tracks open frame sockets so shutdown can close them and wait for
// their handlers to return before the detector is released.
type Sockets struct {
	clients map[*websocket.Conn]bool
	closing bool
	mutex   sync.Mutex
	wg      sync.WaitGroup
}

func NewSockets() *Sockets {
	return &Sockets{clients: make(map[*websocket.Conn]bool)}
}

// Register adds conn. It returns false once CloseAll has run, and the
// caller must then drop the connection.
func (s *Sockets) Register(conn *websocket.Conn) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closing {
		return false
	}
	s.clients[conn] = true
	s.wg.Add(1)
	return true
}

// Unregister removes conn and marks its handler as done.
func (s *Sockets) Unregister(conn *websocket.Conn) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.clients[conn]; ok {
		delete(s.clients, conn)
		s.wg.Done()
	}
}

// Count returns the number of open sockets.
func (s *Sockets) Count() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.clients)
}

// CloseAll sends a going-away close frame to every socket and closes it.
// Blocked reads return, so the handlers exit.
func (s *Sockets) CloseAll() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.closing = true
	message := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for client := range s.clients {
		client.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
		client.Close()
	}
}

// Wait blocks until every registered handler has unregistered or ctx ends.
func (s *Sockets) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
