package content

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/soddy-dev/claude-code-acp/internal/acp"
)

func TestConvertPromptTextRoundTrips(t *testing.T) {
	blocks, err := ConvertPrompt([]acp.ContentBlock{acp.TextBlock("hello world")})
	if err != nil {
		t.Fatalf("ConvertPrompt returned error: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	text, ok := RoundTripText(blocks[0])
	if !ok || text != "hello world" {
		t.Fatalf("text did not round-trip: %q ok=%v", text, ok)
	}
}

func TestConvertPromptResourceLinkKeepsURI(t *testing.T) {
	blocks, err := ConvertPrompt([]acp.ContentBlock{{
		Type: "resource_link",
		Name: "main.go",
		URI:  "zed:///project/main.go",
	}})
	if err != nil {
		t.Fatalf("ConvertPrompt returned error: %v", err)
	}
	if blocks[0].Text != "[main.go](zed:///project/main.go)" {
		t.Fatalf("unexpected link text: %q", blocks[0].Text)
	}
	if !strings.Contains(blocks[0].Text, "zed:///project/main.go") {
		t.Fatalf("original URI not recoverable from %q", blocks[0].Text)
	}
}

func TestConvertPromptEmbeddedResourceWrapsInContextTags(t *testing.T) {
	blocks, err := ConvertPrompt([]acp.ContentBlock{{
		Type: "resource",
		Resource: &acp.EmbeddedResource{
			URI:  "file:///tmp/notes.txt",
			Text: "some notes",
		},
	}})
	if err != nil {
		t.Fatalf("ConvertPrompt returned error: %v", err)
	}
	want := `<context ref="file:///tmp/notes.txt">some notes</context>`
	if blocks[0].Text != want {
		t.Fatalf("expected %q, got %q", want, blocks[0].Text)
	}
}

func TestConvertPromptRejectsOversizedImage(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString(make([]byte, MaxImageBytes+1))
	_, err := ConvertPrompt([]acp.ContentBlock{{
		Type:     "image",
		MimeType: "image/png",
		Data:     payload,
	}})
	if err == nil {
		t.Fatal("expected oversized image to be rejected at conversion time")
	}
}

func TestConvertPromptRejectsUnsupportedImageMime(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("tiff bytes"))
	_, err := ConvertPrompt([]acp.ContentBlock{{
		Type:     "image",
		MimeType: "image/tiff",
		Data:     payload,
	}})
	if err == nil {
		t.Fatal("expected unsupported MIME type to be rejected")
	}
}

func TestConvertPromptAcceptsSmallImage(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("png bytes"))
	blocks, err := ConvertPrompt([]acp.ContentBlock{{
		Type:     "image",
		MimeType: "image/png",
		Data:     payload,
	}})
	if err != nil {
		t.Fatalf("ConvertPrompt returned error: %v", err)
	}
	if blocks[0].Type != "image" || blocks[0].Source == nil || blocks[0].Source.MediaType != "image/png" {
		t.Fatalf("unexpected image block: %+v", blocks[0])
	}
}

func TestTransformMCPCommand(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"/mcp:server:cmd some args", "/server:cmd (MCP) some args"},
		{"/mcp:test:run", "/test:run (MCP)"},
		{"/mcp:my-server:run-tests --verbose", "/my-server:run-tests (MCP) --verbose"},
		{"/compact", "/compact"},
		{"/mcp:server", "/mcp:server"},
		{"hello world", "hello world"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := TransformMCPCommand(tc.in); got != tc.want {
			t.Errorf("TransformMCPCommand(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestConvertPromptUnknownBlockFails(t *testing.T) {
	if _, err := ConvertPrompt([]acp.ContentBlock{{Type: "hologram"}}); err == nil {
		t.Fatal("expected unknown block type to be rejected")
	}
}
