package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

func TestValidateConfigCollectsEveryProblem(t *testing.T) {
	result := ValidateConfig(domain.TicketConfig{})
	require.False(t, result.Valid)
	require.Len(t, result.Errors, 5)
	require.Contains(t, result.Errors, "ticket system is not enabled")
	require.Contains(t, result.Errors, "panel channel is not set")
	require.Contains(t, result.Errors, "ticket category is not set")
	require.Contains(t, result.Errors, "support role is not set")
	require.Contains(t, result.Errors, "transcript channel is not set")
}

func TestValidateConfigReportsOnlyMissingFields(t *testing.T) {
	cfg := validTestConfig()
	cfg.CategoryID = ""
	cfg.SupportRoleID = ""

	result := ValidateConfig(cfg)
	require.False(t, result.Valid)
	require.Equal(t, []string{
		"ticket category is not set",
		"support role is not set",
	}, result.Errors)
}

func TestValidateConfigComplete(t *testing.T) {
	result := ValidateConfig(validTestConfig())
	require.True(t, result.Valid)
	require.Empty(t, result.Errors)
}

func TestValidatePermissionsAllResolvable(t *testing.T) {
	gw := newFakeGateway()
	gw.addCategory("cat-1")
	gw.addRole("role-1")
	gw.addChannel("log-1")
	gw.addChannel("panel-1")

	result := ValidatePermissions(context.Background(), gw, validTestConfig())
	require.True(t, result.Valid)
}

func TestValidatePermissionsUnresolvedReferences(t *testing.T) {
	gw := newFakeGateway()
	gw.addChannel("panel-1")

	result := ValidatePermissions(context.Background(), gw, validTestConfig())
	require.False(t, result.Valid)
	require.Len(t, result.Errors, 3)
	require.Contains(t, result.Errors, "ticket category cat-1 does not resolve")
	require.Contains(t, result.Errors, "transcript channel log-1 does not resolve")
	require.Contains(t, result.Errors, "support role role-1 does not resolve")
}

func TestValidatePermissionsMissingCapabilities(t *testing.T) {
	gw := newFakeGateway()
	gw.addCategory("cat-1")
	gw.addRole("role-1")
	gw.addChannel("log-1")
	gw.addChannel("panel-1")
	gw.caps["panel-1"] = domain.CapabilitySendMessages
	gw.caps["log-1"] = domain.CapabilitySendMessages

	result := ValidatePermissions(context.Background(), gw, validTestConfig())
	require.False(t, result.Valid)
	require.Contains(t, result.Errors, "missing embed_links on panel channel panel-1")
	require.Contains(t, result.Errors, "missing attach_files on transcript channel log-1")
}
