package output

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestStatusStyle(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		wantBold bool
		wantFG   lipgloss.Color
		wantDim  bool
	}{
		{
			name:   "evaluated returns green",
			status: StatusEvaluated,
			wantFG: colorGreen,
		},
		{
			name:   "linking returns yellow",
			status: StatusLinking,
			wantFG: ColorYellow,
		},
		{
			name:   "evaluating returns yellow",
			status: StatusEvaluating,
			wantFG: ColorYellow,
		},
		{
			name:    "linked returns faint",
			status:  StatusLinked,
			wantDim: true,
		},
		{
			name:    "unlinked returns faint",
			status:  StatusUnlinked,
			wantDim: true,
		},
		{
			name:     "errored returns bold red",
			status:   StatusErrored,
			wantBold: true,
			wantFG:   colorBoldRed,
		},
		{
			name:   "unknown returns default unstyled",
			status: "unknown-value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			style := statusStyle(tt.status)
			if tt.wantBold {
				assert.True(t, style.GetBold(), "expected bold")
			}
			if tt.wantFG != "" {
				assert.Equal(t, tt.wantFG, style.GetForeground(), "foreground color mismatch")
			}
			if tt.wantDim {
				assert.True(t, style.GetFaint(), "expected faint")
			}
		})
	}
}

func TestFormatModuleLine(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		status string
	}{
		{
			name:   "file module",
			id:     "file:///app/main.mjs",
			status: StatusEvaluated,
		},
		{
			name:   "builtin module",
			id:     "builtin:path",
			status: StatusLinked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatModuleLine(tt.id, tt.status)
			assert.Contains(t, result, tt.id, "should contain identifier")
			assert.Contains(t, result, tt.status, "should contain status text")
			assert.True(t, strings.HasPrefix(stripAnsi(result), "m:"), "should start with m: prefix")
		})
	}

	t.Run("alignment consistency", func(t *testing.T) {
		line1 := FormatModuleLine("builtin:fs", StatusEvaluated)
		line2 := FormatModuleLine("file:///app/lib/util.js", StatusEvaluated)

		idx1 := strings.Index(stripAnsi(line1), StatusEvaluated)
		idx2 := strings.Index(stripAnsi(line2), StatusEvaluated)

		assert.Equal(t, idx1, idx2, "status words should align to same column")
	})

	t.Run("long identifier keeps a gap", func(t *testing.T) {
		id := "file:///" + strings.Repeat("x", 80) + ".js"
		stripped := stripAnsi(FormatModuleLine(id, StatusErrored))
		assert.Contains(t, stripped, id+"  "+StatusErrored)
	})
}

func TestFormatTag(t *testing.T) {
	assert.Equal(t, "[native]", stripAnsi(FormatTag("native")))
	assert.Equal(t, "[json]", stripAnsi(FormatTag("json")))
}

func TestFormatCheckmark(t *testing.T) {
	result := FormatCheckmark("Loaded 3 modules")
	assert.Contains(t, result, "✔", "should contain checkmark")
	assert.Contains(t, result, "Loaded 3 modules", "should contain message")
}

func TestFormatVetCheck(t *testing.T) {
	tests := []struct {
		name       string
		label      string
		detail     string
		wantLabel  string
		wantDetail string
	}{
		{
			name:       "with detail",
			label:      "Config file found",
			detail:     "~/.modload/config.yaml",
			wantLabel:  "Config file found",
			wantDetail: "~/.modload/config.yaml",
		},
		{
			name:      "without detail",
			label:     "Schema validation passed",
			wantLabel: "Schema validation passed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatVetCheck(tt.label, tt.detail)

			assert.Contains(t, result, "✔", "should contain checkmark")
			assert.Contains(t, result, tt.wantLabel, "should contain label")

			if tt.detail != "" {
				assert.Contains(t, result, tt.wantDetail, "should contain detail")
			} else {
				stripped := stripAnsi(result)
				assert.False(t, strings.HasSuffix(stripped, " "), "should not have trailing whitespace when detail is empty")
			}
		})
	}

	t.Run("alignment consistency", func(t *testing.T) {
		line1 := FormatVetCheck("Config file found", "~/.modload/config.yaml")
		line2 := FormatVetCheck("Extensions are unique", "3 formats")

		idx1 := strings.Index(stripAnsi(line1), "~/.modload/config.yaml")
		idx2 := strings.Index(stripAnsi(line2), "3 formats")

		assert.Equal(t, idx1, idx2, "detail text should align to same column")
	})
}

// stripAnsi removes ANSI escape sequences for content assertions.
func stripAnsi(s string) string {
	var result strings.Builder
	inEscape := false
	for i := 0; i < len(s); i++ {
		if s[i] == '\033' {
			inEscape = true
			continue
		}
		if inEscape {
			if s[i] == 'm' {
				inEscape = false
			}
			continue
		}
		result.WriteByte(s[i])
	}
	return result.String()
}
