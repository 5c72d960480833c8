// Package room manages the media room side of a call session: minting access
// tokens, creating and deleting rooms through the LiveKit server API, and
// publishing the agent's audio into the room.
package room

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	// emptyTimeoutSeconds is how long the server keeps an empty room alive
	// before garbage-collecting it.
	emptyTimeoutSeconds = 300

	// maxParticipants bounds a call room to the agent and the bridged caller.
	maxParticipants = 2
)

// Gateway drives the LiveKit RoomService over its twirp HTTP endpoints.
type Gateway struct {
	baseURL    string
	issuer     *TokenIssuer
	httpClient *http.Client
	logger     *slog.Logger
}

// GatewayOption is a functional option for configuring a Gateway.
type GatewayOption func(*Gateway)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *Gateway) { g.httpClient = c }
}

// WithLogger sets the logger used for room lifecycle events.
func WithLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = l }
}

// NewGateway creates a Gateway for the RoomService at baseURL (e.g.
// "https://livekit.example.com"), authenticating with tokens from issuer.
func NewGateway(baseURL string, issuer *TokenIssuer, opts ...GatewayOption) (*Gateway, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("room: base URL must not be empty")
	}
	if issuer == nil {
		return nil, fmt.Errorf("room: token issuer must not be nil")
	}
	g := &Gateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		issuer:     issuer,
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

type createRoomRequest struct {
	Name            string `json:"name"`
	EmptyTimeout    int    `json:"empty_timeout"`
	MaxParticipants int    `json:"max_participants"`
}

type deleteRoomRequest struct {
	Room string `json:"room"`
}

// RoomInfo is the subset of the RoomService response the session cares about.
type RoomInfo struct {
	SID  string `json:"sid"`
	Name string `json:"name"`
}

// CreateRoom creates (or re-fetches, the endpoint is idempotent server-side)
// the named room.
func (g *Gateway) CreateRoom(ctx context.Context, name string) (*RoomInfo, error) {
	body, err := g.twirp(ctx, "CreateRoom", name, createRoomRequest{
		Name:            name,
		EmptyTimeout:    emptyTimeoutSeconds,
		MaxParticipants: maxParticipants,
	})
	if err != nil {
		return nil, fmt.Errorf("room: create %q: %w", name, err)
	}

	var info RoomInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("room: create %q: decode response: %w", name, err)
	}
	g.logger.Info("room created", "room", name, "sid", info.SID)
	return &info, nil
}

// DeleteRoom removes the named room. Deleting a room that no longer exists is
// not an error; teardown runs this speculatively.
func (g *Gateway) DeleteRoom(ctx context.Context, name string) error {
	_, err := g.twirp(ctx, "DeleteRoom", name, deleteRoomRequest{Room: name})
	if err != nil {
		if isNotFound(err) {
			g.logger.Debug("room already gone", "room", name)
			return nil
		}
		return fmt.Errorf("room: delete %q: %w", name, err)
	}
	g.logger.Info("room deleted", "room", name)
	return nil
}

// statusError carries the HTTP status of a failed twirp call so callers can
// distinguish not-found from real failures.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	// twirp maps not_found to 404; some deployments report it as a 500 with
	// a not_found code in the body.
	return se.status == http.StatusNotFound || strings.Contains(se.body, "not_found")
}

// twirp POSTs a JSON-encoded request to the named RoomService method.
func (g *Gateway) twirp(ctx context.Context, method, roomName string, payload any) ([]byte, error) {
	token, err := g.issuer.Mint(roomName, "admin")
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	u := g.baseURL + "/twirp/livekit.RoomService/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{status: resp.StatusCode, body: string(body)}
	}
	return body, nil
}
