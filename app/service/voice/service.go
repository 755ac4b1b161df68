package voice

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/samber/do"
	"github.com/sashabaranov/go-openai"
	"github.com/yizucodes/interview-agent/app/client/cartesia"
	"github.com/yizucodes/interview-agent/app/client/roomrtc"
	"github.com/yizucodes/interview-agent/app/client/speechkit"
	"github.com/yizucodes/interview-agent/app/config"
	"github.com/yizucodes/interview-agent/app/service/interview"
)

const llmTimeout = 30 * time.Second

// Service constructs voice sessions: the speech-to-text stream, the LLM
// tool-calling loop and the synthesized replies for one interview room.
type Service struct {
	cfg          *config.Config
	speechClient *speechkit.YandexSpeechKit
	ttsClient    *cartesia.Client
	interviewSvc *interview.Service

	llm *openai.Client
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	clientConfig := openai.DefaultConfig(cfg.OpenAI.Chat.Token)
	clientConfig.BaseURL = cfg.OpenAI.Chat.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: llmTimeout,
	}

	return &Service{
		cfg:          cfg,
		speechClient: do.MustInvoke[*speechkit.YandexSpeechKit](di),
		ttsClient:    do.MustInvoke[*cartesia.Client](di),
		interviewSvc: do.MustInvoke[*interview.Service](di),
		llm:          openai.NewClientWithConfig(clientConfig),
	}, nil
}

// Start attaches a new conversational session to the room. The returned
// session runs until its context is cancelled or the room connection drops.
func (s *Service) Start(ctx context.Context, room *roomrtc.Room) (*Session, error) {
	handle, err := s.speechClient.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start speech recognition: %w", err)
	}

	session := newSession(s, room, handle)
	session.start(ctx)

	return session, nil
}
