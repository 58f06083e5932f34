package firebase

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"firebase.google.com/go/v4/db"
	"golang.org/x/oauth2"

	"swapit/internal/domain/repository"
	"swapit/pkg/logger"
)

// RTDBClient implements the RemoteStore contract on the Firebase
// Realtime Database. Reads and writes go through the Admin SDK; the
// Admin SDK has no listener support, so Subscribe streams the REST
// API's server-sent events and mirrors the subtree locally to deliver
// value-event snapshots.
type RTDBClient struct {
	db          *db.Client
	databaseURL string
	tokens      oauth2.TokenSource
	http        *http.Client

	pushMu     sync.Mutex
	pushMillis int64
	pushRand   [12]int
}

func NewRTDBClient(client *db.Client, databaseURL string, tokens oauth2.TokenSource) *RTDBClient {
	return &RTDBClient{
		db:          client,
		databaseURL: strings.TrimRight(databaseURL, "/"),
		tokens:      tokens,
		http:        &http.Client{},
	}
}

func (c *RTDBClient) Get(ctx context.Context, path string, dest interface{}) (bool, error) {
	var raw json.RawMessage
	if err := c.db.NewRef(path).Get(ctx, &raw); err != nil {
		return false, fmt.Errorf("failed to read %s: %v", path, err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("failed to decode %s: %v", path, err)
	}
	return true, nil
}

func (c *RTDBClient) Set(ctx context.Context, path string, value interface{}) error {
	if value == nil {
		return c.Delete(ctx, path)
	}
	if err := c.db.NewRef(path).Set(ctx, value); err != nil {
		return fmt.Errorf("failed to write %s: %v", path, err)
	}
	return nil
}

func (c *RTDBClient) Delete(ctx context.Context, path string) error {
	if err := c.db.NewRef(path).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s: %v", path, err)
	}
	return nil
}

// BatchWrite maps onto the database's multi-path update, which commits
// every path or none. Nil values delete their path, matching the
// database's null semantics.
func (c *RTDBClient) BatchWrite(ctx context.Context, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	normalized := make(map[string]interface{}, len(updates))
	for path, value := range updates {
		normalized[strings.Trim(path, "/")] = value
	}
	if err := c.db.NewRef("/").Update(ctx, normalized); err != nil {
		return fmt.Errorf("failed to apply batched write: %v", err)
	}
	return nil
}

const pushChars = "-0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

// NewChildID generates a push id client-side: 8 characters of timestamp
// followed by 12 of randomness, incremented when two ids land on the
// same millisecond so ids stay unique and sortable. Nothing is written
// at the new path.
func (c *RTDBClient) NewChildID(ctx context.Context, path string) (string, error) {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()

	now := time.Now().UnixMilli()
	if now == c.pushMillis {
		for i := 11; i >= 0; i-- {
			c.pushRand[i]++
			if c.pushRand[i] < 64 {
				break
			}
			c.pushRand[i] = 0
		}
	} else {
		for i := range c.pushRand {
			c.pushRand[i] = rand.Intn(64)
		}
	}
	c.pushMillis = now

	var b [20]byte
	for i := 7; i >= 0; i-- {
		b[i] = pushChars[now%64]
		now /= 64
	}
	for i, r := range c.pushRand {
		b[8+i] = pushChars[r]
	}
	return string(b[:]), nil
}

// Subscribe opens an event-stream request against the REST endpoint for
// path and keeps a local mirror of the subtree. Every put or patch event
// updates the mirror and delivers a fresh snapshot, giving subscribers
// the same value-event view a native listener would. Dropped connections
// reconnect with backoff; a cancel or auth_revoked event ends the
// subscription through onCancel.
func (c *RTDBClient) Subscribe(path string, onChange func(json.RawMessage), onCancel func(error)) (repository.CancelFunc, error) {
	ctx, cancel := context.WithCancel(context.Background())
	go c.stream(ctx, path, onChange, onCancel)
	return repository.CancelFunc(cancel), nil
}

func (c *RTDBClient) stream(ctx context.Context, path string, onChange func(json.RawMessage), onCancel func(error)) {
	backoff := time.Second
	for {
		err := c.streamOnce(ctx, path, onChange)
		if ctx.Err() != nil {
			return
		}
		if err == errStreamRevoked {
			if onCancel != nil {
				onCancel(fmt.Errorf("subscription to %s revoked", path))
			}
			return
		}

		logger.Warn("Stream for %s dropped, reconnecting in %s: %v", path, backoff, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

var errStreamRevoked = fmt.Errorf("stream revoked")

type streamEvent struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

func (c *RTDBClient) streamOnce(ctx context.Context, path string, onChange func(json.RawMessage)) error {
	url := fmt.Sprintf("%s/%s.json", c.databaseURL, strings.Trim(path, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("failed to fetch access token: %v", err)
	}
	token.SetAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errStreamRevoked
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream request returned %s", resp.Status)
	}

	var mirror interface{}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	event := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(line[len("data:"):])
			switch event {
			case "put", "patch":
				var ev streamEvent
				if err := json.Unmarshal([]byte(data), &ev); err != nil {
					return fmt.Errorf("malformed %s event: %v", event, err)
				}
				mirror = applyStreamEvent(mirror, ev, event == "patch")
				snapshot, err := json.Marshal(mirror)
				if err != nil {
					return fmt.Errorf("failed to encode snapshot: %v", err)
				}
				onChange(snapshot)
			case "cancel", "auth_revoked":
				return errStreamRevoked
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return fmt.Errorf("stream for %s closed by server", path)
}

// applyStreamEvent folds one put or patch event into the mirrored
// subtree. A put replaces the node at the event path; a patch merges its
// children into it. A null leaf deletes the node.
func applyStreamEvent(mirror interface{}, ev streamEvent, patch bool) interface{} {
	segments := strings.FieldsFunc(ev.Path, func(r rune) bool { return r == '/' })

	var value interface{}
	if err := json.Unmarshal(ev.Data, &value); err != nil {
		value = nil
	}

	if patch {
		children, ok := value.(map[string]interface{})
		if !ok {
			return mirror
		}
		for key, child := range children {
			childPath := append(append([]string{}, segments...), key)
			mirror = writeTree(mirror, childPath, child)
		}
		return mirror
	}
	return writeTree(mirror, segments, value)
}

func writeTree(node interface{}, segments []string, value interface{}) interface{} {
	if len(segments) == 0 {
		return value
	}

	branch, ok := node.(map[string]interface{})
	if !ok {
		branch = make(map[string]interface{})
	}
	child := writeTree(branch[segments[0]], segments[1:], value)
	if child == nil {
		delete(branch, segments[0])
	} else {
		branch[segments[0]] = child
	}
	if len(branch) == 0 {
		return nil
	}
	return branch
}
