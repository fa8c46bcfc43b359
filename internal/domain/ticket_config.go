package domain

// PanelSelectionType controls how users initiate tickets from the panel.
type PanelSelectionType string

const (
	PanelSelectionButton   PanelSelectionType = "button"
	PanelSelectionDropdown PanelSelectionType = "dropdown"
)

// PanelConfig describes the persistent panel message users create tickets from.
type PanelConfig struct {
	ChannelID           string             `json:"channel_id"`
	SelectionType       PanelSelectionType `json:"selection_type"`
	ButtonLabel         string             `json:"button_label"`
	ButtonColor         string             `json:"button_color"`
	DropdownOptions     []string           `json:"dropdown_options,omitempty"`
	WelcomeMessage      string             `json:"welcome_message"`
	ConfirmBeforeDelete bool               `json:"confirm_before_delete"`
}

// TicketConfig is the singleton ticket system configuration. It is owned by
// the config store and read-mostly by the lifecycle manager.
type TicketConfig struct {
	Enabled             bool   `json:"enabled"`
	CategoryID          string `json:"category_id"`
	SupportRoleID       string `json:"support_role_id"`
	TranscriptChannelID string `json:"transcript_channel_id"`

	// TicketLimit caps concurrently open tickets per user.
	TicketLimit uint `json:"ticket_limit"`

	OpenMessage  string `json:"open_message"`
	CloseMessage string `json:"close_message"`

	LogTranscripts bool `json:"log_transcripts"`
	LogAllActions  bool `json:"log_all_actions"`

	AutoClose             bool `json:"auto_close"`
	AutoCloseDelaySeconds uint `json:"auto_close_delay_seconds"`

	// CustomFields holds field prompts in panel order. Answer collection is
	// not wired up; the prompts surface in transcripts only.
	CustomFields []string `json:"custom_fields,omitempty"`

	Panel PanelConfig `json:"panel"`
}

// DefaultTicketConfig returns the configuration applied before an operator
// has set anything up.
func DefaultTicketConfig() TicketConfig {
	return TicketConfig{
		TicketLimit: 1,
		Panel: PanelConfig{
			SelectionType: PanelSelectionButton,
			ButtonLabel:   "Open a ticket",
		},
	}
}
