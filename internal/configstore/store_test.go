package configstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

func TestMergeConfigTopLevelFields(t *testing.T) {
	current := domain.DefaultTicketConfig()
	current.CategoryID = "cat-1"

	merged, err := mergeConfig(current, map[string]any{
		"enabled":      true,
		"ticket_limit": 3,
	})
	require.NoError(t, err)
	require.True(t, merged.Enabled)
	require.Equal(t, uint(3), merged.TicketLimit)

	// Untouched fields survive the patch.
	require.Equal(t, "cat-1", merged.CategoryID)
	require.Equal(t, "Open a ticket", merged.Panel.ButtonLabel)
}

func TestMergeConfigNestedPanelPatch(t *testing.T) {
	current := domain.DefaultTicketConfig()
	current.Panel.ChannelID = "panel-1"

	merged, err := mergeConfig(current, map[string]any{
		"panel": map[string]any{
			"button_label": "Get help",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "Get help", merged.Panel.ButtonLabel)
	require.Equal(t, "panel-1", merged.Panel.ChannelID)
	require.Equal(t, domain.PanelSelectionButton, merged.Panel.SelectionType)
}

func TestMergeConfigRejectsWrongTypes(t *testing.T) {
	_, err := mergeConfig(domain.DefaultTicketConfig(), map[string]any{
		"ticket_limit": "not a number",
	})
	require.Error(t, err)
}

func TestMergeConfigReplacesArrays(t *testing.T) {
	current := domain.DefaultTicketConfig()
	current.Panel.DropdownOptions = []string{"old"}

	merged, err := mergeConfig(current, map[string]any{
		"panel": map[string]any{
			"dropdown_options": []string{"billing", "technical"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"billing", "technical"}, merged.Panel.DropdownOptions)
}
