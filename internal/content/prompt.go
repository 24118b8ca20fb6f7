// Package content holds the two direction-specific translation tables: ACP
// prompt blocks into backend user content, and backend stream messages into
// ACP session/update notifications.
package content

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/soddy-dev/claude-code-acp/internal/acp"
	"github.com/soddy-dev/claude-code-acp/internal/claude"
)

// MaxImageBytes caps the decoded base64 payload of an image block.
const MaxImageBytes = 15 * 1024 * 1024

var allowedImageMime = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Pattern: /mcp:server:name [args]
var mcpCommandPattern = regexp.MustCompile(`^/mcp:([^:\s]+):(\S+)(\s+.*)?$`)

// ConvertPrompt translates the ACP prompt into backend user-content blocks.
// Validation failures abort the whole prompt; no backend request is issued
// for a partially converted turn.
func ConvertPrompt(blocks []acp.ContentBlock) ([]claude.ContentBlock, error) {
	out := make([]claude.ContentBlock, 0, len(blocks))
	for i, block := range blocks {
		switch block.Type {
		case "text":
			out = append(out, claude.ContentBlock{Type: "text", Text: TransformMCPCommand(block.Text)})
		case "resource_link":
			label := block.Name
			if label == "" {
				label = block.URI
			}
			out = append(out, claude.ContentBlock{
				Type: "text",
				Text: fmt.Sprintf("[%s](%s)", label, block.URI),
			})
		case "resource":
			if block.Resource == nil {
				return nil, fmt.Errorf("block %d: resource field is required", i)
			}
			if block.Resource.Text == "" {
				return nil, fmt.Errorf("block %d: only text resources are supported", i)
			}
			// Context tags keep attached files distinct from user speech.
			out = append(out, claude.ContentBlock{
				Type: "text",
				Text: fmt.Sprintf("<context ref=%q>%s</context>", block.Resource.URI, block.Resource.Text),
			})
		case "image":
			converted, err := convertImage(block, i)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		case "audio":
			return nil, fmt.Errorf("block %d: audio content is not supported", i)
		default:
			return nil, fmt.Errorf("block %d: unknown content block type: %s", i, block.Type)
		}
	}
	return out, nil
}

func convertImage(block acp.ContentBlock, index int) (claude.ContentBlock, error) {
	if !allowedImageMime[block.MimeType] {
		return claude.ContentBlock{}, fmt.Errorf("block %d: unsupported image MIME type: %s", index, block.MimeType)
	}

	if block.Data != "" {
		decoded, err := base64.StdEncoding.DecodeString(block.Data)
		if err != nil {
			return claude.ContentBlock{}, fmt.Errorf("block %d: invalid base64 image data", index)
		}
		if len(decoded) > MaxImageBytes {
			return claude.ContentBlock{}, fmt.Errorf("block %d: image exceeds %d byte limit", index, MaxImageBytes)
		}
		return claude.ContentBlock{
			Type:   "image",
			Source: &claude.ImageSource{Type: "base64", MediaType: block.MimeType, Data: block.Data},
		}, nil
	}
	if block.URI != "" {
		return claude.ContentBlock{
			Type:   "image",
			Source: &claude.ImageSource{Type: "url", URL: block.URI},
		}, nil
	}
	return claude.ContentBlock{}, fmt.Errorf("block %d: image requires data or uri", index)
}

// TransformMCPCommand rewrites the editor's MCP slash command shape into the
// one the backend expects: "/mcp:server:cmd args" -> "/server:cmd (MCP) args".
func TransformMCPCommand(text string) string {
	m := mcpCommandPattern.FindStringSubmatch(text)
	if m == nil {
		return text
	}
	return fmt.Sprintf("/%s:%s (MCP)%s", m[1], m[2], m[3])
}

// RoundTripText recovers the original text from a converted text block; used
// by tests to assert the conversion is lossless for plain chunks.
func RoundTripText(block claude.ContentBlock) (string, bool) {
	if block.Type != "text" || strings.HasPrefix(block.Text, "<context ") {
		return "", false
	}
	return block.Text, true
}
