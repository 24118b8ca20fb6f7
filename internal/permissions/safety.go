package permissions

import (
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// CommandBasename extracts the command name from a shell command line,
// resolving full paths: "/usr/bin/find . -name x" yields "find".
func CommandBasename(cmd string) string {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return ""
	}
	return filepath.Base(fields[0])
}

// SplitCommands parses command with a real shell grammar and returns every
// simple command it contains, in source order: pipeline stages, &&/||/;
// parts, and the bodies of $(...) and backtick substitutions all surface as
// separate entries. ok is false when the input does not parse; callers must
// treat that as an unmatchable command rather than falling back to prefix
// string matching, which is how injection slips past a rule.
func SplitCommands(command string) (cmds []string, ok bool) {
	parser := syntax.NewParser()
	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, false
	}

	printer := syntax.NewPrinter()
	syntax.Walk(file, func(node syntax.Node) bool {
		if call, isCall := node.(*syntax.CallExpr); isCall && len(call.Args) > 0 {
			var sb strings.Builder
			if err := printer.Print(&sb, call); err == nil {
				cmds = append(cmds, strings.TrimSpace(sb.String()))
			}
		}
		return true
	})
	return cmds, true
}

// IsKnownSafeCommand reports whether every simple command in the input is
// read-only and non-destructive, so Default mode can approve it without a
// prompt.
func IsKnownSafeCommand(command string) bool {
	cmds, ok := SplitCommands(command)
	if !ok || len(cmds) == 0 {
		return false
	}
	for _, cmd := range cmds {
		if !isSafeSimpleCommand(cmd) {
			return false
		}
	}
	return true
}

func isSafeSimpleCommand(command string) bool {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return false
	}
	name := filepath.Base(parts[0])

	switch name {
	// Read-only file viewing.
	case "cat", "head", "tail", "less", "more":
		return true

	// System info queries.
	case "ls", "pwd", "whoami", "id", "uname", "hostname", "date", "uptime":
		return true

	// Read-only text processing.
	case "grep", "egrep", "fgrep", "wc", "cut", "tr", "sort", "uniq", "nl",
		"paste", "rev", "seq", "expr":
		return true

	// Output.
	case "echo", "printf", "true", "false":
		return true

	// Path and file info.
	case "which", "whereis", "type", "file", "stat", "realpath", "basename", "dirname":
		return true

	case "cd":
		return true

	case "find":
		return !hasUnsafeFindOptions(parts)
	case "git":
		return isSafeGitSubcommand(parts)
	case "cargo":
		return len(parts) > 1 && parts[1] == "check"
	case "go":
		return len(parts) > 1 && (parts[1] == "env" || parts[1] == "version" || parts[1] == "list")
	case "rg":
		return !hasUnsafeRgOptions(parts)
	case "sed":
		return isSafeSedCommand(parts)
	case "base64":
		return !hasUnsafeBase64Options(parts)
	default:
		return false
	}
}

// find options that execute commands, delete files, or write output files.
var unsafeFindOptions = map[string]bool{
	"-exec":    true,
	"-execdir": true,
	"-ok":      true,
	"-okdir":   true,
	"-delete":  true,
	"-fls":     true,
	"-fprint":  true,
	"-fprint0": true,
	"-fprintf": true,
}

func hasUnsafeFindOptions(parts []string) bool {
	for _, arg := range parts {
		if unsafeFindOptions[arg] {
			return true
		}
	}
	return false
}

func isSafeGitSubcommand(parts []string) bool {
	if len(parts) < 2 {
		return false
	}
	switch parts[1] {
	case "status", "log", "diff", "show", "branch", "remote", "tag", "describe":
		return true
	default:
		return false
	}
}

func hasUnsafeRgOptions(parts []string) bool {
	for _, arg := range parts {
		if arg == "--search-zip" || arg == "-z" ||
			arg == "--pre" || strings.HasPrefix(arg, "--pre=") ||
			arg == "--hostname-bin" || strings.HasPrefix(arg, "--hostname-bin=") {
			return true
		}
	}
	return false
}

// Only `sed -n {N|M,N}p [file]` is considered safe.
func isSafeSedCommand(parts []string) bool {
	if len(parts) < 3 || len(parts) > 4 {
		return false
	}
	if parts[1] != "-n" {
		return false
	}
	return isSedPrintPattern(strings.Trim(parts[2], `'"`))
}

func isSedPrintPattern(pattern string) bool {
	core, found := strings.CutSuffix(pattern, "p")
	if !found {
		return false
	}
	ranges := strings.Split(core, ",")
	if len(ranges) > 2 {
		return false
	}
	for _, r := range ranges {
		if r == "" {
			return false
		}
		for _, ch := range r {
			if ch < '0' || ch > '9' {
				return false
			}
		}
	}
	return true
}

func hasUnsafeBase64Options(parts []string) bool {
	for _, arg := range parts[1:] {
		if strings.HasPrefix(arg, "-o") || arg == "--output" || strings.HasPrefix(arg, "--output=") {
			return true
		}
	}
	return false
}

// MightBeDangerous reports whether any simple command in the input can cause
// data loss or system damage. Dangerous commands never receive a synthesized
// always-allow rule.
func MightBeDangerous(command string) bool {
	cmds, ok := SplitCommands(command)
	if !ok {
		return true
	}
	for _, cmd := range cmds {
		if isDangerousSimpleCommand(cmd) {
			return true
		}
	}
	return false
}

func isDangerousSimpleCommand(command string) bool {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return false
	}
	name := filepath.Base(parts[0])

	switch name {
	case "rm":
		return isDangerousRm(parts)
	case "git":
		return isDangerousGitSubcommand(parts)
	case "sudo", "su", "doas":
		return true
	case "chmod", "chown", "chgrp":
		return true
	case "mkfs", "fdisk", "parted", "dd":
		return true
	case "apt", "apt-get", "yum", "dnf", "pacman", "brew":
		return true
	case "systemctl", "service":
		return true
	case "kill", "killall", "pkill":
		return true
	default:
		return strings.HasPrefix(name, "mkfs.")
	}
}

func isDangerousRm(parts []string) bool {
	for _, part := range parts[1:] {
		if strings.HasPrefix(part, "-") && strings.Contains(strings.TrimPrefix(part, "-"), "f") {
			return true
		}
	}
	return false
}

func isDangerousGitSubcommand(parts []string) bool {
	if len(parts) > 1 {
		switch parts[1] {
		case "reset", "rm", "clean", "rebase", "push":
			return true
		}
	}
	for _, arg := range parts {
		if arg == "--force" || arg == "-f" {
			return true
		}
	}
	return false
}
