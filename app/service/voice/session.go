package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/tools"
	"github.com/yizucodes/interview-agent/app/client/roomrtc"
	"github.com/yizucodes/interview-agent/app/client/speechkit"
	"golang.org/x/sync/errgroup"
)

const (
	audioBufferSize = 256
	maxToolRounds   = 8
	captionKind     = "caption"
)

// Session is one running conversation. Inbound audio is streamed to the
// recognizer, finalized utterances feed the LLM tool loop, and replies are
// synthesized back into the room.
type Session struct {
	svc    *Service
	room   *roomrtc.Room
	handle *speechkit.Handle

	audioFrames *frameBuffer
	utterances  *utteranceQueue

	history []openai.ChatCompletionMessage
	toolSet map[string]tools.Tool

	cancel context.CancelCauseFunc
	done   chan struct{}
}

func newSession(svc *Service, room *roomrtc.Room, handle *speechkit.Handle) *Session {
	history := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: svc.interviewSvc.SystemPrompt(),
		},
	}

	toolSet := make(map[string]tools.Tool)
	for _, tool := range svc.interviewSvc.Tools() {
		toolSet[tool.Name()] = tool
	}

	return &Session{
		svc:         svc,
		room:        room,
		handle:      handle,
		audioFrames: newFrameBuffer(audioBufferSize),
		utterances:  newUtteranceQueue(),
		history:     history,
		toolSet:     toolSet,
		done:        make(chan struct{}),
	}
}

func (s *Session) start(ctx context.Context) {
	ctx, cancel := context.WithCancelCause(ctx)
	s.cancel = cancel

	// Another agent's synthesized speech must not reach the recognizer.
	s.room.OnAudioFrame(func(participant roomrtc.Participant, pcm []byte) {
		if participant.IsAgent() {
			return
		}

		s.audioFrames.Add(pcm)
	})

	go func() {
		defer close(s.done)

		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			return s.runRecognition(ctx)
		})

		g.Go(func() error {
			return s.converse(ctx)
		})

		if err := g.Wait(); err != nil && context.Cause(ctx) == nil {
			slog.Error("Voice session stopped",
				"room", s.room.Name(),
				"error", err)
		}
	}()
}

// Close cancels the session and waits for its goroutines to drain.
func (s *Session) Close() error {
	s.cancel(nil)
	<-s.done

	return nil
}

// Say synthesizes text and publishes it into the room, along with a caption.
func (s *Session) Say(ctx context.Context, text string) error {
	audio, err := s.svc.ttsClient.Synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to synthesize reply: %w", err)
	}

	if err = s.room.PublishAudio(audio); err != nil {
		return fmt.Errorf("failed to publish audio: %w", err)
	}

	if err = s.room.PublishData(captionKind, text); err != nil {
		slog.Warn("Failed to publish caption",
			"room", s.room.Name(),
			"error", err)
	}

	return nil
}

// runRecognition keeps the speech-to-text stream alive for the whole
// session, replacing it after transient failures.
func (s *Session) runRecognition(ctx context.Context) error {
	handle := s.handle

	for {
		err := s.pump(ctx, handle)
		_ = handle.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}

		slog.Warn("Recognition stream failed, restarting",
			"room", s.room.Name(),
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}

		handle, err = s.svc.speechClient.Start(ctx)
		if err != nil {
			return fmt.Errorf("failed to restart speech recognition: %w", err)
		}
	}
}

func (s *Session) pump(ctx context.Context, handle *speechkit.Handle) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := handle.SendConfig(); err != nil {
			return fmt.Errorf("failed to send audio config: %w", err)
		}

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case frame := <-s.audioFrames.Channel():
				if err := handle.Send(frame); err != nil {
					return fmt.Errorf("failed to send audio: %w", err)
				}
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			sentences, err := handle.Recv()
			if err != nil {
				return fmt.Errorf("Recv: %w", err)
			}

			for _, text := range sentences {
				s.utterances.Add(text)
			}
		}
	})

	return g.Wait()
}

func (s *Session) converse(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case text := <-s.utterances.Channel():
			start := time.Now()

			if err := s.respond(ctx, text); err != nil {
				slog.Warn("Failed to respond",
					"room", s.room.Name(),
					"error", err)
				continue
			}

			slog.Info("Processed utterance",
				"room", s.room.Name(),
				"duration", time.Since(start))
		}
	}
}

// respond runs one LLM round trip, executing tool calls until the model
// produces a spoken reply.
func (s *Session) respond(ctx context.Context, text string) error {
	s.history = append(s.history, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})

	for round := 0; round < maxToolRounds; round++ {
		message, err := s.complete(ctx)
		if err != nil {
			return err
		}

		s.history = append(s.history, message)

		if len(message.ToolCalls) == 0 {
			if message.Content == "" {
				return nil
			}

			return s.Say(ctx, message.Content)
		}

		for _, call := range message.ToolCalls {
			s.history = append(s.history, s.executeToolCall(ctx, call))
		}
	}

	return fmt.Errorf("tool loop did not converge after %d rounds", maxToolRounds)
}

func (s *Session) complete(ctx context.Context) (openai.ChatCompletionMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()

	resp, err := s.svc.llm.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    s.svc.cfg.OpenAI.Chat.Model,
		Messages: s.history,
		Tools:    s.toolDefinitions(),
	})
	if err != nil {
		return openai.ChatCompletionMessage{}, fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return openai.ChatCompletionMessage{}, fmt.Errorf("no chat completion found")
	}

	return resp.Choices[0].Message, nil
}

func (s *Session) executeToolCall(ctx context.Context, call openai.ToolCall) openai.ChatCompletionMessage {
	result := openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		ToolCallID: call.ID,
	}

	tool, ok := s.toolSet[call.Function.Name]
	if !ok {
		result.Content = fmt.Sprintf("unknown tool: %s", call.Function.Name)
		return result
	}

	input := unwrapInput(call.Function.Arguments)

	output, err := tool.Call(ctx, input)
	if err != nil {
		slog.Error("Tool call failed",
			"tool", call.Function.Name,
			"error", err)
		result.Content = fmt.Sprintf("tool error: %s", err)
		return result
	}

	result.Content = output

	return result
}

func (s *Session) toolDefinitions() []openai.Tool {
	defs := make([]openai.Tool, 0, len(s.toolSet))

	for _, tool := range s.toolSet {
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"input": map[string]any{
							"type":        "string",
							"description": "Tool input as described in the tool description",
						},
					},
					"required": []string{"input"},
				},
			},
		})
	}

	return defs
}

// unwrapInput extracts the single "input" argument; models that return bare
// strings or unexpected shapes fall through unchanged.
func unwrapInput(arguments string) string {
	var wrapped struct {
		Input string `json:"input"`
	}
	if err := json.Unmarshal([]byte(arguments), &wrapped); err == nil && wrapped.Input != "" {
		return wrapped.Input
	}

	return arguments
}
