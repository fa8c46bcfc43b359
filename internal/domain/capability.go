package domain

import "strings"

// Capability is a named permission the bot must hold on a channel, category
// or role to perform an operation there. Capabilities combine as a bit set.
type Capability uint64

const (
	CapabilityViewChannel Capability = 1 << iota
	CapabilityManageChannel
	CapabilitySendMessages
	CapabilityEmbedLinks
	CapabilityAttachFiles
	CapabilityReadHistory
	CapabilityManagePermissions
)

// Has reports whether every capability in want is present in c.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

var capabilityNames = []struct {
	bit  Capability
	name string
}{
	{CapabilityViewChannel, "view_channel"},
	{CapabilityManageChannel, "manage_channel"},
	{CapabilitySendMessages, "send_messages"},
	{CapabilityEmbedLinks, "embed_links"},
	{CapabilityAttachFiles, "attach_files"},
	{CapabilityReadHistory, "read_history"},
	{CapabilityManagePermissions, "manage_permissions"},
}

func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	parts := make([]string, 0, len(capabilityNames))
	for _, entry := range capabilityNames {
		if c.Has(entry.bit) {
			parts = append(parts, entry.name)
		}
	}
	return strings.Join(parts, "|")
}

// Missing returns the capabilities in want that are absent from c.
func (c Capability) Missing(want Capability) Capability {
	return want &^ c
}
