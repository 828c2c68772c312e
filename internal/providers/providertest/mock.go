// Package providertest provides provider doubles for tests.
package providertest

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/tributary-ai/postgen/internal/providers"
	"github.com/tributary-ai/postgen/internal/types"
)

// MockProvider is a testify mock of GenerationProvider
type MockProvider struct {
	mock.Mock
	Name string
}

func (m *MockProvider) GetProviderName() string {
	return m.Name
}

func (m *MockProvider) Generate(ctx context.Context, credential string, req *types.GenerationRequest) (*types.GenerationResponse, error) {
	args := m.Called(ctx, credential, req)
	resp, _ := args.Get(0).(*types.GenerationResponse)
	return resp, args.Error(1)
}

// Call records one Generate invocation
type Call struct {
	Credential string
	Model      string
	Prompt     string
	HasImage   bool
}

// Outcome is the scripted result of one call
type Outcome struct {
	Text string
	Err  error
}

// ScriptedProvider answers from a per-model script, then from Default.
// It is safe for concurrent use.
type ScriptedProvider struct {
	Name    string
	Scripts map[string][]Outcome
	Default Outcome
	Vision  bool

	mutex sync.Mutex
	calls []Call
}

// NewScriptedProvider returns a provider that answers text for every call
func NewScriptedProvider(name, text string) *ScriptedProvider {
	return &ScriptedProvider{
		Name:    name,
		Scripts: make(map[string][]Outcome),
		Default: Outcome{Text: text},
		Vision:  true,
	}
}

// Script queues outcomes for a model
func (s *ScriptedProvider) Script(model string, outcomes ...Outcome) *ScriptedProvider {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.Scripts[model] = append(s.Scripts[model], outcomes...)
	return s
}

func (s *ScriptedProvider) GetProviderName() string {
	return s.Name
}

func (s *ScriptedProvider) SupportsVision() bool {
	return s.Vision
}

func (s *ScriptedProvider) GetSupportedImageFormats() []string {
	return []string{"image/png", "image/jpeg", "image/webp", "image/gif"}
}

func (s *ScriptedProvider) Generate(ctx context.Context, credential string, req *types.GenerationRequest) (*types.GenerationResponse, error) {
	s.mutex.Lock()
	s.calls = append(s.calls, Call{
		Credential: credential,
		Model:      req.Model,
		Prompt:     req.Prompt,
		HasImage:   req.Image != nil,
	})
	outcome := s.Default
	if queued := s.Scripts[req.Model]; len(queued) > 0 {
		outcome = queued[0]
		s.Scripts[req.Model] = queued[1:]
	}
	s.mutex.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if outcome.Err != nil {
		return nil, outcome.Err
	}
	return &types.GenerationResponse{
		Text:     outcome.Text,
		Provider: s.Name,
		Model:    req.Model,
	}, nil
}

// Calls returns a copy of every recorded call
func (s *ScriptedProvider) Calls() []Call {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

var (
	_ providers.GenerationProvider = (*MockProvider)(nil)
	_ providers.VisionProvider     = (*ScriptedProvider)(nil)
)
