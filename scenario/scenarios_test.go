package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetKnownScenario(t *testing.T) {
	s, err := Get(1)
	require.NoError(t, err)
	assert.Equal(t, "simple_scheduling", s.Name)
	assert.NotEmpty(t, s.SystemPrompt)
	assert.NotEmpty(t, s.FirstMessage)
}

func TestGetUnknownScenario(t *testing.T) {
	_, err := Get(999)
	assert.Error(t, err)
}

func TestAllScenariosComplete(t *testing.T) {
	all := All()
	require.NotEmpty(t, all)
	seen := map[int]bool{}
	for _, s := range all {
		assert.False(t, seen[s.ID], "duplicate id %d", s.ID)
		seen[s.ID] = true
		assert.NotEmpty(t, s.Name)
		assert.NotEmpty(t, s.Description)
		assert.NotEmpty(t, s.SystemPrompt)
		assert.NotEmpty(t, s.FirstMessage)
	}
}
