package interview

import (
	"context"
	"strings"

	_ "embed"

	"github.com/samber/do"
	"github.com/tmc/langchaingo/tools"
	"github.com/yizucodes/interview-agent/app/config"
	"github.com/yizucodes/interview-agent/app/service/retrieval"
)

//go:embed system_prompt.txt
var systemPrompt string

//go:embed greeting.txt
var greeting string

var _ do.Shutdownable = (*Service)(nil)

type docSearcher interface {
	Search(ctx context.Context, query string, k int) (string, error)
}

// Service holds the interviewer's behavioral contract: the system
// instructions, the scripted greeting and the tool set exposed to the
// conversational engine.
type Service struct {
	cfg          *config.Config
	retrievalSvc docSearcher

	tools      []tools.Tool
	mcpClients []*mcpClientWrapper
}

func New(di *do.Injector) (*Service, error) {
	s := &Service{
		cfg:          do.MustInvoke[*config.Config](di),
		retrievalSvc: do.MustInvoke[*retrieval.Service](di),
	}

	s.tools = s.createNativeTools()

	if err := s.initializeMCPClients(); err != nil {
		return nil, err
	}

	for _, wrapper := range s.mcpClients {
		s.tools = append(s.tools, wrapper.tools...)
	}

	return s, nil
}

func (s *Service) SystemPrompt() string {
	return strings.TrimSpace(systemPrompt)
}

func (s *Service) Greeting() string {
	return strings.TrimSpace(greeting)
}

// Tools returns the interviewer tool set: documentation search, feedback
// generation, plus anything contributed by configured MCP servers.
func (s *Service) Tools() []tools.Tool {
	return s.tools
}

func (s *Service) Shutdown() error {
	for _, wrapper := range s.mcpClients {
		_ = wrapper.client.Close()
	}

	return nil
}
