package styles

import "testing"

func TestStateColor(t *testing.T) {
	tests := []struct {
		state    string
		expected string // Expected color hex value
	}{
		{"idle", "#9CA3AF"},
		{"service_starting", "#F59E0B"},
		{"service_ready", "#F59E0B"},
		{"client_starting", "#F59E0B"},
		{"client_ready", "#10B981"},
		{"restarting", "#60A5FA"},
		{"failed", "#F87171"},
		{"unknown", "#9CA3AF"}, // Should fall back to MutedColor
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			got := StateColor(tt.state)
			if string(got) != tt.expected {
				t.Errorf("StateColor(%q) = %q, want %q", tt.state, got, tt.expected)
			}
		})
	}
}

func TestStateIcon(t *testing.T) {
	tests := []struct {
		state    string
		expected string
	}{
		{"idle", "○"},
		{"service_starting", "◐"},
		{"service_ready", "◑"},
		{"client_ready", "●"},
		{"restarting", "↻"},
		{"failed", "✗"},
		{"unknown", "●"},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			if got := StateIcon(tt.state); got != tt.expected {
				t.Errorf("StateIcon(%q) = %q, want %q", tt.state, got, tt.expected)
			}
		})
	}
}

func TestSeverityColor(t *testing.T) {
	tests := []struct {
		severity int
		color    string
	}{
		{1, "#F87171"},
		{2, "#F59E0B"},
		{3, "#60A5FA"},
		{4, "#9CA3AF"},
		{0, "#9CA3AF"},
	}

	for _, tt := range tests {
		t.Run(tt.color, func(t *testing.T) {
			if got := SeverityColor(tt.severity); string(got) != tt.color {
				t.Errorf("SeverityColor(%d) = %q, want %q", tt.severity, got, tt.color)
			}
		})
	}
}
