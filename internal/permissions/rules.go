package permissions

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/soddy-dev/claude-code-acp/internal/config"
)

// Decision is the outcome of evaluating the configured rule set.
type Decision int

const (
	DecisionAsk Decision = iota
	DecisionAllow
	DecisionDeny
)

type CheckResult struct {
	Decision Decision
	// Rule is the matching rule text, empty for the default "ask".
	Rule string
}

// builtInToolPrefix is how the embedded tool server's tools appear to the
// backend; rules are written against the bare names.
const builtInToolPrefix = "mcp__acp__"

func StripToolPrefix(toolName string) string {
	return strings.TrimPrefix(toolName, builtInToolPrefix)
}

// readGroup: a rule naming Read also covers Grep, Glob and LS.
var readGroup = map[string]bool{"Read": true, "Grep": true, "Glob": true, "LS": true}

type parsedRule struct {
	text string
	tool string
	// spec is the parenthesized argument; empty for bare tool rules.
	spec string
	// prefix is set for "cmd:*" specs.
	prefix string
	// glob is set for path specs containing meta characters.
	glob string
}

func parseRule(text string) parsedRule {
	rule := parsedRule{text: text, tool: text}

	open := strings.IndexByte(text, '(')
	if open < 0 || !strings.HasSuffix(text, ")") {
		return rule
	}
	rule.tool = text[:open]
	rule.spec = text[open+1 : len(text)-1]

	if cut, found := strings.CutSuffix(rule.spec, ":*"); found {
		rule.prefix = cut
	} else if strings.ContainsAny(rule.spec, "*?[") {
		rule.glob = rule.spec
	}
	return rule
}

// matches evaluates the rule against one tool invocation. Bash specs match
// per simple command: a compound command matches only when every part does,
// so `Bash(npm run:*)` never lets `npm run build && rm -rf /` through.
func (r parsedRule) matches(toolName string, input map[string]any, cwd string) bool {
	name := StripToolPrefix(toolName)
	if r.tool != name && !(readGroup[r.tool] && readGroup[name] && r.tool == "Read") {
		return false
	}
	if r.spec == "" {
		return true
	}

	if name == "Bash" {
		cmd, _ := input["command"].(string)
		if strings.TrimSpace(cmd) == "" {
			return false
		}
		cmds, ok := SplitCommands(cmd)
		if !ok || len(cmds) == 0 {
			return false
		}
		for _, sub := range cmds {
			if !r.matchesCommand(sub) {
				return false
			}
		}
		return true
	}

	path := inputFilePath(input)
	if path == "" {
		return false
	}
	return r.matchesPath(path, cwd)
}

func (r parsedRule) matchesCommand(cmd string) bool {
	cmd = strings.TrimSpace(cmd)
	switch {
	case r.prefix != "":
		return cmd == r.prefix || strings.HasPrefix(cmd, r.prefix+" ")
	case r.glob != "":
		ok, err := doublestar.Match(r.glob, cmd)
		return err == nil && ok
	default:
		return cmd == r.spec
	}
}

func (r parsedRule) matchesPath(path, cwd string) bool {
	pattern := r.spec
	if r.prefix != "" {
		// "dir:*" path rules behave as a plain prefix.
		return strings.HasPrefix(path, r.prefix)
	}

	if strings.HasPrefix(pattern, "./") {
		pattern = filepath.Join(cwd, strings.TrimPrefix(pattern, "./"))
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}

	ok, err := doublestar.Match(pattern, path)
	return err == nil && ok
}

// Checker evaluates tool invocations against the configured rule set plus
// any rules accumulated at runtime from allow_always replies.
// Priority: deny > allow > ask.
type Checker struct {
	cwd string

	mu    sync.RWMutex
	allow []parsedRule
	deny  []parsedRule
	ask   []parsedRule
}

func NewChecker(settings config.Settings, cwd string) *Checker {
	c := &Checker{cwd: cwd}
	if settings.Permissions != nil {
		c.allow = parseRules(settings.Permissions.Allow)
		c.deny = parseRules(settings.Permissions.Deny)
		c.ask = parseRules(settings.Permissions.Ask)
	}
	return c
}

func parseRules(texts []string) []parsedRule {
	rules := make([]parsedRule, 0, len(texts))
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		rules = append(rules, parseRule(text))
	}
	return rules
}

func (c *Checker) Check(toolName string, input map[string]any) CheckResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, rule := range c.deny {
		if rule.matches(toolName, input, c.cwd) {
			return CheckResult{Decision: DecisionDeny, Rule: rule.text}
		}
	}
	for _, rule := range c.allow {
		if rule.matches(toolName, input, c.cwd) {
			return CheckResult{Decision: DecisionAllow, Rule: rule.text}
		}
	}
	for _, rule := range c.ask {
		if rule.matches(toolName, input, c.cwd) {
			return CheckResult{Decision: DecisionAsk, Rule: rule.text}
		}
	}
	return CheckResult{Decision: DecisionAsk}
}

func (c *Checker) HasRules() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.allow)+len(c.deny)+len(c.ask) > 0
}

func (c *Checker) AddAllowRule(text string) {
	c.mu.Lock()
	c.allow = append(c.allow, parseRule(text))
	c.mu.Unlock()
}

// AddAllowRuleForToolCall synthesizes a runtime allow rule from an
// allow_always reply. Bash commands widen to the command basename
// (`Bash(find:*)`); file tools widen to the containing directory tree.
// Dangerous commands never widen.
func (c *Checker) AddAllowRuleForToolCall(toolName string, input map[string]any) string {
	name := StripToolPrefix(toolName)

	rule := name
	switch name {
	case "Bash":
		cmd, _ := input["command"].(string)
		if MightBeDangerous(cmd) {
			return ""
		}
		if base := CommandBasename(cmd); base != "" {
			rule = fmt.Sprintf("Bash(%s:*)", base)
		}
	case "Read", "Grep", "Glob", "LS":
		rule = c.fileRule("Read", input)
	case "Edit", "Write":
		rule = c.fileRule(name, input)
	}

	c.AddAllowRule(rule)
	return rule
}

func (c *Checker) fileRule(toolName string, input map[string]any) string {
	path := inputFilePath(input)
	if path == "" {
		return toolName
	}
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return fmt.Sprintf("%s(./*)", toolName)
	}
	if rel, err := filepath.Rel(c.cwd, dir); err == nil && !strings.HasPrefix(rel, "..") {
		if rel == "." {
			return fmt.Sprintf("%s(./*)", toolName)
		}
		return fmt.Sprintf("%s(./%s/**)", toolName, rel)
	}
	return fmt.Sprintf("%s(%s/**)", toolName, dir)
}
