package client

import "testing"

func TestParseAnalysisResult(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		label string
		x, w  float64
	}{
		{
			name:  "plain",
			raw:   `{"primary":{"label":"game window","confidence":0.9,"box":{"x":0.1,"y":0.2,"w":0.5,"h":0.6}},"description":"a window"}`,
			label: "game window", x: 0.1, w: 0.5,
		},
		{
			name:  "fenced with comments and trailing comma",
			raw:   "```json\n{\n  // region\n  \"primary\": {\"label\": \"panel\", \"confidence\": 0.5, \"box\": {\"x\": 0.3, \"y\": 0, \"w\": 0.4, \"h\": 1,},},\n}\n```",
			label: "panel", x: 0.3, w: 0.4,
		},
		{
			name:  "prose around json",
			raw:   `Sure! Here it is: {"primary":{"label":"chart","confidence":0.7,"box":{"x":0.25,"y":0.25,"w":0.5,"h":0.5}}} hope that helps`,
			label: "chart", x: 0.25, w: 0.5,
		},
		{
			name:  "no json",
			raw:   "I cannot see the image.",
			label: "none", x: 0, w: 1,
		},
		{
			name:  "broken json",
			raw:   `{"primary": {"label": "x", "box": }`,
			label: "none", x: 0, w: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAnalysisResult(tt.raw)
			if got.Primary.Label != tt.label {
				t.Errorf("Expected label %q, got %q", tt.label, got.Primary.Label)
			}
			if got.Primary.Box.X != tt.x || got.Primary.Box.W != tt.w {
				t.Errorf("Expected box x=%v w=%v, got %+v", tt.x, tt.w, got.Primary.Box)
			}
		})
	}
}

func TestSanitizeModelJSON(t *testing.T) {
	got := SanitizeModelJSON("```json\n{\"a\": [1, 2,], /* note */ \"b\": 3,}\n```")
	if got != `{"a": [1, 2],  "b": 3}` {
		t.Errorf("unexpected sanitized JSON %q", got)
	}
}
