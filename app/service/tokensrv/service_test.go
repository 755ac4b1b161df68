package tokensrv

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/samber/do"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yizucodes/interview-agent/app/client/roomrtc"
	"github.com/yizucodes/interview-agent/app/config"
)

func roomListResponse(occupied int) string {
	rooms := make([]string, 0, occupied)
	for i := 0; i < occupied; i++ {
		rooms = append(rooms,
			fmt.Sprintf(`{"name": "interview-%d", "num_participants": 2}`, i))
	}

	return fmt.Sprintf(`{"rooms": [%s]}`, strings.Join(rooms, ","))
}

func newTestServer(t *testing.T, roomServer *httptest.Server, maxSessions int) *Service {
	t.Helper()

	roomURL := "ws://localhost:1"
	if roomServer != nil {
		roomURL = "ws" + strings.TrimPrefix(roomServer.URL, "http")
	}

	di := do.New()
	do.ProvideValue(di, &config.Config{
		Room: config.Room{
			URL:        roomURL,
			APIKey:     "api-key",
			APISecret:  "api-secret",
			RoomPrefix: "interview-",
		},
		Interview: config.Interview{
			MaxConcurrentSessions: maxSessions,
			TokenServerAddr:       ":0",
		},
	})
	do.Provide(di, roomrtc.NewClient)

	svc, err := New(di)
	require.NoError(t, err)

	return svc
}

func doRequest(t *testing.T, svc *Service, path string) (*http.Response, map[string]any) {
	t.Helper()

	resp, err := svc.app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	return resp, body
}

func TestTokenIssued(t *testing.T) {
	roomServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(roomListResponse(1)))
	}))
	defer roomServer.Close()

	svc := newTestServer(t, roomServer, 5)

	resp, body := doRequest(t, svc, "/token?room=interview-abc&identity=candidate-1&name=Alex")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])
	assert.NotEmpty(t, body["url"])
}

func TestTokenRejectedAtCapacity(t *testing.T) {
	roomServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(roomListResponse(2)))
	}))
	defer roomServer.Close()

	svc := newTestServer(t, roomServer, 2)

	resp, body := doRequest(t, svc, "/token?room=interview-abc&identity=candidate-1")

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestTokenCapacityIgnoresOtherRooms(t *testing.T) {
	// Empty interview rooms and rooms outside the prefix do not consume
	// capacity.
	roomServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rooms": [
			{"name": "interview-empty", "num_participants": 0},
			{"name": "lobby", "num_participants": 10}
		]}`))
	}))
	defer roomServer.Close()

	svc := newTestServer(t, roomServer, 1)

	resp, _ := doRequest(t, svc, "/token?room=interview-abc&identity=candidate-1")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNonInterviewRoomSkipsCapacityCheck(t *testing.T) {
	// No room server running at all: a non-prefixed room must still get a
	// token without a capacity lookup.
	svc := newTestServer(t, nil, 1)

	resp, body := doRequest(t, svc, "/token?room=playground&identity=visitor")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])
}

func TestTokenFailsOpenWhenListingBreaks(t *testing.T) {
	roomServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer roomServer.Close()

	svc := newTestServer(t, roomServer, 1)

	resp, _ := doRequest(t, svc, "/token?room=interview-abc&identity=candidate-1")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTokenRequiresParameters(t *testing.T) {
	svc := newTestServer(t, nil, 5)

	resp, _ := doRequest(t, svc, "/token?room=interview-abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doRequest(t, svc, "/token?identity=candidate-1")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCapacityCheck(t *testing.T) {
	roomServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(roomListResponse(3)))
	}))
	defer roomServer.Close()

	svc := newTestServer(t, roomServer, 3)

	resp, body := doRequest(t, svc, "/capacity-check")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["available"])
	assert.Equal(t, float64(3), body["max"])
}

func TestCapacityCheckFailsOpen(t *testing.T) {
	svc := newTestServer(t, nil, 3)

	resp, body := doRequest(t, svc, "/capacity-check")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["available"])
}

func TestRoomURL(t *testing.T) {
	svc := newTestServer(t, nil, 3)

	resp, body := doRequest(t, svc, "/room-url")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ws://localhost:1", body["url"])
}
