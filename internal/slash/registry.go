// Package slash holds the predefined slash commands advertised to clients
// through available_commands_update.
package slash

import "github.com/soddy-dev/claude-code-acp/internal/acp"

// Commands returns the predefined command set sent after session creation.
func Commands() []acp.AvailableCommand {
	return []acp.AvailableCommand{
		{
			Name:        "compact",
			Description: "Compact conversation with optional focus instructions",
			Input:       &acp.AvailableCommandInput{Hint: "[instructions]"},
		},
		{
			Name:        "init",
			Description: "Initialize project with CLAUDE.md guide",
		},
		{
			Name:        "review",
			Description: "Request code review",
			Input:       &acp.AvailableCommandInput{Hint: "[scope or file]"},
		},
	}
}
