package media

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewGeminiDescriberRequiresAPIKey(t *testing.T) {
	_, err := NewGeminiDescriber(nil, GeminiDescriberConfig{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "API key is required")
}
