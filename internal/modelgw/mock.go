package modelgw

import (
	"context"
	"fmt"
	"strings"
)

// MockClient produces deterministic local replies when no gateway is
// configured. Useful for development and smoke tests.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) StreamCompletion(ctx context.Context, prompt string, onDelta func(string) error) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	text := buildMockReply(prompt)
	if onDelta != nil && text != "" {
		if err := onDelta(text); err != nil {
			return "", err
		}
	}
	return text, nil
}

func buildMockReply(prompt string) string {
	base := strings.TrimSpace(prompt)
	if base == "" {
		return "Nothing to do."
	}
	return fmt.Sprintf("Acknowledged: %s", base)
}
