package service

import (
	"context"
	"fmt"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/gateway"
)

// ValidationResult carries every problem found in one pass. Checks never
// short-circuit: an operator fixing configuration should see the full list,
// not one error at a time.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

func validationResult(errs []string) ValidationResult {
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// Capability minimums per configured resource.
const (
	categoryCapabilities   = domain.CapabilityViewChannel | domain.CapabilityManageChannel
	panelCapabilities      = domain.CapabilitySendMessages | domain.CapabilityEmbedLinks
	transcriptCapabilities = domain.CapabilitySendMessages | domain.CapabilityAttachFiles
)

// ValidateConfig checks configuration completeness. Nothing is inferred or
// defaulted on the caller's behalf; every missing field is one entry.
func ValidateConfig(cfg domain.TicketConfig) ValidationResult {
	var errs []string
	if !cfg.Enabled {
		errs = append(errs, "ticket system is not enabled")
	}
	if cfg.Panel.ChannelID == "" {
		errs = append(errs, "panel channel is not set")
	}
	if cfg.CategoryID == "" {
		errs = append(errs, "ticket category is not set")
	}
	if cfg.SupportRoleID == "" {
		errs = append(errs, "support role is not set")
	}
	if cfg.TranscriptChannelID == "" {
		errs = append(errs, "transcript channel is not set")
	}
	return validationResult(errs)
}

// ValidatePermissions resolves each configured channel, category and role
// against live guild state and checks the bot's effective capabilities
// against the minimum required for that resource. Unresolved references and
// insufficient capabilities are reported as distinct entries; all checks run.
func ValidatePermissions(ctx context.Context, gw gateway.Gateway, cfg domain.TicketConfig) ValidationResult {
	var errs []string

	if cfg.CategoryID != "" {
		errs = append(errs, checkCategory(ctx, gw, cfg.CategoryID)...)
	}
	if cfg.Panel.ChannelID != "" {
		errs = append(errs, checkChannel(ctx, gw, cfg.Panel.ChannelID, "panel channel", panelCapabilities)...)
	}
	if cfg.TranscriptChannelID != "" {
		errs = append(errs, checkChannel(ctx, gw, cfg.TranscriptChannelID, "transcript channel", transcriptCapabilities)...)
	}
	if cfg.SupportRoleID != "" {
		role, err := gw.ResolveRole(ctx, cfg.SupportRoleID)
		if err != nil {
			errs = append(errs, fmt.Sprintf("support role %s could not be checked: %v", cfg.SupportRoleID, err))
		} else if role == nil {
			errs = append(errs, fmt.Sprintf("support role %s does not resolve", cfg.SupportRoleID))
		}
	}

	return validationResult(errs)
}

func checkCategory(ctx context.Context, gw gateway.Gateway, categoryID string) []string {
	var errs []string
	category, err := gw.ResolveCategory(ctx, categoryID)
	if err != nil {
		return append(errs, fmt.Sprintf("ticket category %s could not be checked: %v", categoryID, err))
	}
	if category == nil {
		return append(errs, fmt.Sprintf("ticket category %s does not resolve", categoryID))
	}
	errs = append(errs, checkCapabilities(ctx, gw, categoryID, "ticket category", categoryCapabilities)...)
	return errs
}

func checkChannel(ctx context.Context, gw gateway.Gateway, channelID, label string, want domain.Capability) []string {
	var errs []string
	channel, err := gw.ResolveChannel(ctx, channelID)
	if err != nil {
		return append(errs, fmt.Sprintf("%s %s could not be checked: %v", label, channelID, err))
	}
	if channel == nil {
		return append(errs, fmt.Sprintf("%s %s does not resolve", label, channelID))
	}
	errs = append(errs, checkCapabilities(ctx, gw, channelID, label, want)...)
	return errs
}

func checkCapabilities(ctx context.Context, gw gateway.Gateway, channelID, label string, want domain.Capability) []string {
	have, err := gw.BotCapabilities(ctx, channelID)
	if err != nil {
		return []string{fmt.Sprintf("%s %s permissions could not be checked: %v", label, channelID, err)}
	}
	if missing := have.Missing(want); missing != 0 {
		return []string{fmt.Sprintf("missing %s on %s %s", missing, label, channelID)}
	}
	return nil
}
