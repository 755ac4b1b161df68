package tokensrv

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/do"
	"github.com/yizucodes/interview-agent/app/client/roomrtc"
	"github.com/yizucodes/interview-agent/app/config"
)

// Service issues room access tokens to candidates and answers capacity
// probes. Capacity here is measured against rooms visible on the media
// server, which trails the in-process session gate slightly; the gate is
// still the authoritative admission check when the agent picks up the job.
type Service struct {
	cfg        *config.Config
	roomClient *roomrtc.Client
	app        *fiber.App
}

func New(di *do.Injector) (*Service, error) {
	s := &Service{
		cfg:        do.MustInvoke[*config.Config](di),
		roomClient: do.MustInvoke[*roomrtc.Client](di),
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Get("/token", s.handleToken)
	app.Get("/capacity-check", s.handleCapacityCheck)
	app.Get("/room-url", s.handleRoomURL)

	s.app = app

	return s, nil
}

// Run blocks serving HTTP until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()

		if err := s.app.Shutdown(); err != nil {
			slog.Error("Failed to shut down token server", "error", err)
		}
	}()

	slog.Info("Token server listening", "addr", s.cfg.Interview.TokenServerAddr)

	return s.app.Listen(s.cfg.Interview.TokenServerAddr)
}

func (s *Service) handleToken(c *fiber.Ctx) error {
	roomName := c.Query("room")
	identity := c.Query("identity")
	name := c.Query("name", identity)

	if roomName == "" || identity == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "room and identity query parameters are required",
		})
	}

	if strings.HasPrefix(roomName, s.cfg.Room.RoomPrefix) && !s.hasCapacity(c.Context()) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "all interview slots are busy, try again later",
		})
	}

	token, err := s.roomClient.AccessToken(identity, name, roomrtc.VideoGrant{
		Room:     roomName,
		RoomJoin: true,
	})
	if err != nil {
		slog.Error("Failed to mint access token",
			"room", roomName,
			"error", err)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create token",
		})
	}

	return c.JSON(fiber.Map{
		"token": token,
		"url":   s.cfg.Room.URL,
	})
}

func (s *Service) handleCapacityCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"available": s.hasCapacity(c.Context()),
		"max":       s.cfg.Interview.MaxConcurrentSessions,
	})
}

func (s *Service) handleRoomURL(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"url": s.cfg.Room.URL,
	})
}

// hasCapacity counts occupied interview rooms on the media server. It fails
// open: a broken room listing must not lock every candidate out.
func (s *Service) hasCapacity(ctx context.Context) bool {
	rooms, err := s.roomClient.ListRooms(ctx)
	if err != nil {
		slog.Warn("Capacity check failed, allowing connection", "error", err)
		return true
	}

	active := 0
	for _, room := range rooms {
		if strings.HasPrefix(room.Name, s.cfg.Room.RoomPrefix) && room.NumParticipants > 0 {
			active++
		}
	}

	return active < s.cfg.Interview.MaxConcurrentSessions
}
