package permissions

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseMode(t *testing.T) {
	for _, valid := range []string{"default", "acceptEdits", "plan", "dontAsk", "bypassPermissions"} {
		if _, ok := ParseMode(valid); !ok {
			t.Errorf("expected %q to parse", valid)
		}
	}
	if _, ok := ParseMode("yolo"); ok {
		t.Error("expected invalid mode to be rejected")
	}
}

func TestDefaultModeAutoApprovals(t *testing.T) {
	for _, tool := range []string{"Read", "Glob", "Grep", "LS", "NotebookRead"} {
		if !ModeDefault.AutoApproves(tool, nil) {
			t.Errorf("expected default mode to auto-approve %s", tool)
		}
	}
	for _, tool := range []string{"Write", "Edit", "NotebookEdit"} {
		if ModeDefault.AutoApproves(tool, nil) {
			t.Errorf("expected default mode not to auto-approve %s", tool)
		}
	}

	if !ModeDefault.AutoApproves("Bash", map[string]any{"command": "cat file.txt"}) {
		t.Error("expected safe bash command to be auto-approved")
	}
	if ModeDefault.AutoApproves("Bash", map[string]any{"command": "rm -rf /"}) {
		t.Error("expected dangerous bash command not to be auto-approved")
	}
}

func TestAcceptEditsAndBypassApproveEverything(t *testing.T) {
	for _, mode := range []Mode{ModeAcceptEdits, ModeBypass} {
		for _, tool := range []string{"Read", "Edit", "Write", "Bash"} {
			if !mode.AutoApproves(tool, map[string]any{"command": "rm -rf /"}) {
				t.Errorf("expected %s to auto-approve %s", mode, tool)
			}
		}
	}
}

func TestDontAskNeverAutoApproves(t *testing.T) {
	if ModeDontAsk.AutoApproves("Read", nil) {
		t.Error("expected dontAsk not to auto-approve anything")
	}
}

func TestPlanModeBlocksWrites(t *testing.T) {
	if reason, blocked := ModePlan.Blocks("Write", map[string]any{"file_path": "/tmp/test.txt"}); !blocked || reason == "" {
		t.Fatal("expected plan mode to block writes outside the plans directory")
	}
	if _, blocked := ModePlan.Blocks("Bash", map[string]any{"command": "echo hi"}); !blocked {
		t.Fatal("expected plan mode to block Bash")
	}
	if _, blocked := ModePlan.Blocks("Read", nil); blocked {
		t.Fatal("expected plan mode not to block reads")
	}
	if !ModePlan.AutoApproves("Read", nil) {
		t.Fatal("expected plan mode to auto-approve reads")
	}
}

func TestPlanModeAllowsPlanFileWrites(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	planPath := filepath.Join(home, ".claude", "plans", "test.md")
	if _, blocked := ModePlan.Blocks("Write", map[string]any{"file_path": planPath}); blocked {
		t.Fatal("expected plan file write to be allowed in plan mode")
	}
	if _, blocked := ModePlan.Blocks("Write", map[string]any{"file_path": "~/.claude/plans/test.md"}); blocked {
		t.Fatal("expected ~ plan path to be allowed in plan mode")
	}
	// Similar prefix outside the plans tree must not slip through.
	evil := filepath.Join(home, ".claude", "plans-evil", "test.md")
	if _, blocked := ModePlan.Blocks("Write", map[string]any{"file_path": evil}); !blocked {
		t.Fatal("expected sibling directory to stay blocked")
	}
}
