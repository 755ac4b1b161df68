package roomrtc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/do"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yizucodes/interview-agent/app/config"
)

func newTestClient(t *testing.T, roomURL string) *Client {
	t.Helper()

	di := do.New()
	do.ProvideValue(di, &config.Config{
		Room: config.Room{
			URL:        roomURL,
			APIKey:     "api-key",
			APISecret:  "api-secret",
			RoomPrefix: "interview-",
		},
	})

	client, err := NewClient(di)
	require.NoError(t, err)

	return client
}

func TestAccessToken(t *testing.T) {
	client := newTestClient(t, "ws://localhost")

	signed, err := client.AccessToken("candidate-1", "Alex", VideoGrant{
		Room:     "interview-abc",
		RoomJoin: true,
	})
	require.NoError(t, err)

	var claims tokenClaims
	token, err := jwt.ParseWithClaims(signed, &claims, func(token *jwt.Token) (any, error) {
		return []byte("api-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	assert.Equal(t, "api-key", claims.Issuer)
	assert.Equal(t, "candidate-1", claims.Subject)
	assert.Equal(t, "Alex", claims.Name)
	assert.Equal(t, "interview-abc", claims.Video.Room)
	assert.True(t, claims.Video.RoomJoin)
	assert.False(t, claims.Video.RoomList)

	ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	assert.Equal(t, 6*time.Hour, ttl)
}

func TestAccessTokenRejectsWrongSecret(t *testing.T) {
	client := newTestClient(t, "ws://localhost")

	signed, err := client.AccessToken("candidate-1", "", VideoGrant{RoomJoin: true})
	require.NoError(t, err)

	_, err = jwt.Parse(signed, func(token *jwt.Token) (any, error) {
		return []byte("wrong-secret"), nil
	})
	assert.Error(t, err)
}

func TestListRooms(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/twirp/roomservice/ListRooms", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer "))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"rooms": [
			{"name": "interview-1", "num_participants": 2},
			{"name": "lobby", "num_participants": 5}
		]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, "ws"+strings.TrimPrefix(srv.URL, "http"))

	rooms, err := client.ListRooms(context.Background())
	require.NoError(t, err)

	require.Len(t, rooms, 2)
	assert.Equal(t, "interview-1", rooms[0].Name)
	assert.Equal(t, 2, rooms[0].NumParticipants)
}

func TestListRoomsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, "ws"+strings.TrimPrefix(srv.URL, "http"))

	_, err := client.ListRooms(context.Background())
	assert.Error(t, err)
}
