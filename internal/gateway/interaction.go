package gateway

// InteractionKind is the tagged variant of component interactions the bot
// understands. Adapters map platform component identifiers to one of these
// kinds instead of leaking string-prefixed custom ids into the lifecycle.
type InteractionKind int

const (
	InteractionUnknown InteractionKind = iota
	InteractionPanelOpen
	InteractionPanelSelect
	InteractionClose
	InteractionCloseConfirm
	InteractionCloseCancel
	InteractionTranscript
	InteractionAddUser
)

// Component custom ids used on the wire. These are stable identifiers; panels
// published by older bot versions keep working after an upgrade.
const (
	customIDPanelOpen    = "ticket_panel_open"
	customIDPanelSelect  = "ticket_panel_select"
	customIDClose        = "ticket_close"
	customIDCloseConfirm = "ticket_close_confirm"
	customIDCloseCancel  = "ticket_close_cancel"
	customIDTranscript   = "ticket_transcript"
	customIDAddUser      = "ticket_adduser"
)

var interactionKinds = map[string]InteractionKind{
	customIDPanelOpen:    InteractionPanelOpen,
	customIDPanelSelect:  InteractionPanelSelect,
	customIDClose:        InteractionClose,
	customIDCloseConfirm: InteractionCloseConfirm,
	customIDCloseCancel:  InteractionCloseCancel,
	customIDTranscript:   InteractionTranscript,
	customIDAddUser:      InteractionAddUser,
}

// Interaction is a typed component event from the platform.
type Interaction struct {
	Kind      InteractionKind
	ChannelID string
	UserID    string

	// Values carries dropdown selections for InteractionPanelSelect.
	Values []string
}

// InteractionHandler receives typed interactions from the adapter.
type InteractionHandler func(Interaction)

// KindForCustomID maps a component custom id to its interaction kind.
func KindForCustomID(customID string) InteractionKind {
	if kind, ok := interactionKinds[customID]; ok {
		return kind
	}
	return InteractionUnknown
}

func (k InteractionKind) String() string {
	switch k {
	case InteractionPanelOpen:
		return "panel_open"
	case InteractionPanelSelect:
		return "panel_select"
	case InteractionClose:
		return "close"
	case InteractionCloseConfirm:
		return "close_confirm"
	case InteractionCloseCancel:
		return "close_cancel"
	case InteractionTranscript:
		return "transcript"
	case InteractionAddUser:
		return "add_user"
	default:
		return "unknown"
	}
}

// PanelOpenButton returns the control placed on a button-style panel.
func PanelOpenButton(label string) Button {
	if label == "" {
		label = "Open a ticket"
	}
	return Button{CustomID: customIDPanelOpen, Label: label, Style: ButtonPrimary}
}

// PanelSelectMenu returns the control placed on a dropdown-style panel.
func PanelSelectMenu(options []string) *SelectMenu {
	menu := &SelectMenu{CustomID: customIDPanelSelect, Placeholder: "Select a topic"}
	for _, opt := range options {
		menu.Options = append(menu.Options, SelectOption{Label: opt, Value: opt})
	}
	return menu
}

// TicketControls returns the management buttons posted in a new ticket channel.
func TicketControls() []Button {
	return []Button{
		{CustomID: customIDClose, Label: "Close", Style: ButtonDanger},
		{CustomID: customIDTranscript, Label: "Transcript", Style: ButtonSecondary},
	}
}

// AddUserSelect returns the member picker posted alongside the ticket
// controls; a pick grants the selected member access to the channel.
func AddUserSelect() *SelectMenu {
	return &SelectMenu{
		CustomID:    customIDAddUser,
		Placeholder: "Add a user to this ticket",
		UserSelect:  true,
	}
}

// ConfirmControls returns the confirm/cancel buttons of a close prompt.
func ConfirmControls() []Button {
	return []Button{
		{CustomID: customIDCloseConfirm, Label: "Confirm close", Style: ButtonDanger},
		{CustomID: customIDCloseCancel, Label: "Cancel", Style: ButtonSecondary},
	}
}
