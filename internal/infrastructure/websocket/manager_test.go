package websocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func register(m *Manager, c *Client) {
	m.mutex.Lock()
	m.clients[c.UserID] = c
	m.mutex.Unlock()
}

func unregister(m *Manager, c *Client) {
	m.mutex.Lock()
	if m.clients[c.UserID] == c {
		delete(m.clients, c.UserID)
	}
	m.mutex.Unlock()
}

func TestSendToUserAfterShutdown(t *testing.T) {
	m := NewManager()
	c := NewClient("u1", nil)
	register(m, c)

	c.shutdown()
	assert.NotPanics(t, func() {
		for i := 0; i < 500; i++ {
			m.SendToUser("u1", []byte("frame"))
		}
	})
}

func TestSendToUserSurvivesShutdownChurn(t *testing.T) {
	m := NewManager()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					m.SendToUser("u1", []byte("frame"))
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		c := NewClient("u1", nil)
		register(m, c)
		c.shutdown()
		unregister(m, c)
	}
	close(stop)
	wg.Wait()
}

func TestShutdownFiresOnCloseOnce(t *testing.T) {
	c := NewClient("u1", nil)
	calls := 0
	c.OnClose = func() { calls++ }

	c.shutdown()
	c.shutdown()
	assert.Equal(t, 1, calls)
}

func TestRegisterReplacesPreviousConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewManager()
	m.Start(ctx)

	closed := make(chan struct{})
	first := NewClient("u1", nil)
	first.OnClose = func() { close(closed) }

	m.Register <- first
	m.Register <- NewClient("u1", nil)

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("previous connection was not shut down")
	}
}
