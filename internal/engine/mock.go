package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lumenhq/lumen/internal/domain"
)

// MockLoader is a Loader that never touches a real shared library, used
// to test model loading without CGO/llama.cpp. Registry tests inject
// this in place of the platform loader.
type MockLoader struct {
	// Fail, when set, is returned by Open instead of a mock library —
	// simulates a corrupt or ABI-mismatched engine binary.
	Fail error
}

func (m *MockLoader) Open(path string) (Library, error) {
	if m.Fail != nil {
		return nil, m.Fail
	}
	return &mockLibrary{cap: &MockCapability{}}, nil
}

type mockLibrary struct {
	cap *MockCapability
}

func (l *mockLibrary) Capability() domain.CapabilityObject { return l.cap }
func (l *mockLibrary) Close() error                        { return nil }

// MockCapability implements domain.CapabilityObject for tests, streaming
// a canned response instead of running real inference.
type MockCapability struct {
	loaded map[string]bool
}

func (c *MockCapability) ABIVersion() int { return currentABIVersion }

func (c *MockCapability) LoadModel(d *domain.ModelDescriptor) error {
	if c.loaded == nil {
		c.loaded = make(map[string]bool)
	}
	c.loaded[d.ID] = true
	return nil
}

func (c *MockCapability) UnloadModel(id string) error {
	delete(c.loaded, id)
	return nil
}

func (c *MockCapability) IsLoaded(id string) bool {
	return c.loaded[id]
}

func (c *MockCapability) Generate(ctx context.Context, req domain.GenerateRequest, sink chan<- domain.Token) error {
	defer close(sink)
	words := strings.Fields(fmt.Sprintf("mock response to: %s", req.Prompt))
	for i, w := range words {
		text := w
		if i < len(words)-1 {
			text += " "
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sink <- domain.Token{Text: text, Done: i == len(words)-1}:
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

func (c *MockCapability) ExecutePythonFile(argv0, script, pyHome string) error {
	return nil
}
