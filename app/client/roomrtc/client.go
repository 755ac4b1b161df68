package roomrtc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/samber/do"
	"github.com/yizucodes/interview-agent/app/config"
)

const (
	tokenTTL       = 6 * time.Hour
	requestTimeout = 10 * time.Second
)

type Client struct {
	cfg        *config.Config
	httpClient *http.Client
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}, nil
}

// VideoGrant is the room permission block embedded in access tokens.
type VideoGrant struct {
	Room     string `json:"room,omitempty"`
	RoomJoin bool   `json:"roomJoin,omitempty"`
	RoomList bool   `json:"roomList,omitempty"`
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Name  string     `json:"name,omitempty"`
	Video VideoGrant `json:"video"`
}

// AccessToken signs a join token for the given identity. The token server
// hands these to browsers; the agent signs its own to join rooms.
func (c *Client) AccessToken(identity, name string, grant VideoGrant) (string, error) {
	now := time.Now()

	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.cfg.Room.APIKey,
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
		Name:  name,
		Video: grant,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(c.cfg.Room.APISecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return signed, nil
}

// ListRooms queries the room server for currently open rooms.
func (c *Client) ListRooms(ctx context.Context) ([]RoomInfo, error) {
	token, err := c.AccessToken("room-lister", "", VideoGrant{RoomList: true})
	if err != nil {
		return nil, err
	}

	url := c.httpBaseURL() + "/twirp/roomservice/ListRooms"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("list rooms failed: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Rooms []RoomInfo `json:"rooms"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode room list: %w", err)
	}

	return result.Rooms, nil
}

// Connect joins a room as the interviewer agent and starts the event loop.
func (c *Client) Connect(ctx context.Context, roomName string) (*Room, error) {
	token, err := c.AccessToken("interviewer-agent", "Interviewer", VideoGrant{
		Room:     roomName,
		RoomJoin: true,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/rtc?access_token=%s&kind=%s", c.cfg.Room.URL, token, KindAgent)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial room %s: %w", roomName, err)
	}

	room := newRoom(roomName, conn)
	go room.readLoop()

	return room, nil
}

// DialJobs opens the agent dispatch stream. Each received JobRequest is a new
// interview room waiting for this agent.
func (c *Client) DialJobs(ctx context.Context) (<-chan JobRequest, error) {
	token, err := c.AccessToken("interviewer-agent", "Interviewer", VideoGrant{RoomList: true})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/agent?access_token=%s", c.cfg.Room.URL, token)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial job stream: %w", err)
	}

	jobs := make(chan JobRequest, 8)

	go func() {
		defer close(jobs)
		defer conn.Close()

		for {
			var msg envelope
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}

			if msg.Event != eventJob {
				continue
			}

			select {
			case jobs <- JobRequest{RoomName: msg.Room}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	return jobs, nil
}

func (c *Client) httpBaseURL() string {
	url := c.cfg.Room.URL
	url = strings.Replace(url, "wss://", "https://", 1)
	url = strings.Replace(url, "ws://", "http://", 1)

	return url
}
