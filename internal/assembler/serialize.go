package assembler

import (
	"encoding/json"
	"fmt"
	"strings"

	"librarian/internal/config"
)

// Serialize renders the bundle in the configured mode. JSON mode emits the
// structured document; bundle-text mode emits a flattened prompt-ready block.
// Both sanitize internal-only fields before rendering.
func Serialize(b *ContextBundle, mode config.SerializationMode) (string, error) {
	if mode == config.SerializeJSON {
		data, err := json.MarshalIndent(sanitized(b), "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to serialize bundle: %w", err)
		}
		return string(data), nil
	}
	return bundleText(b), nil
}

// sanitized strips fields that exist only for pipeline bookkeeping. The
// returned copy shares slices with the original; callers must not mutate it.
func sanitized(b *ContextBundle) *ContextBundle {
	c := *b
	c.Serialized = ""
	c.Hits = nil
	c.AnalysisPaths = nil
	return &c
}

// bundleText flattens the bundle into labeled sections, focus files first.
func bundleText(b *ContextBundle) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Context for: %s\n", b.Request)
	fmt.Fprintf(&sb, "# Intent: %s | Confidence: %s\n\n",
		strings.Join(b.Digest.Signals, ", "), b.Digest.Confidence)

	if b.RepoMap != "" {
		sb.WriteString("## Repository map\n")
		sb.WriteString(b.RepoMap)
		sb.WriteString("\n\n")
	}

	for _, kind := range []string{"focus", "periphery"} {
		for _, f := range b.Files {
			if f.Kind != kind {
				continue
			}
			fmt.Fprintf(&sb, "## File: %s (%s)\n", f.Path, f.Kind)
			sb.WriteString(f.Content)
			if !strings.HasSuffix(f.Content, "\n") {
				sb.WriteString("\n")
			}
			sb.WriteString("\n")
		}
	}

	if len(b.Snippets) > 0 {
		sb.WriteString("## Snippets\n")
		for _, s := range b.Snippets {
			fmt.Fprintf(&sb, "### %s\n%s\n", s.Path, s.Text)
		}
		sb.WriteString("\n")
	}

	if len(b.Memory) > 0 {
		sb.WriteString("## Remembered facts\n")
		for _, f := range b.Memory {
			fmt.Fprintf(&sb, "- %s\n", f.Text)
		}
		sb.WriteString("\n")
	}

	if len(b.Warnings) > 0 {
		sb.WriteString("## Warnings\n")
		for _, w := range b.Warnings {
			fmt.Fprintf(&sb, "- %s\n", w)
		}
	}

	return sb.String()
}
