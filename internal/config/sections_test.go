package config

import (
	"testing"
	"time"
)

func TestRemoteConfig_IsEnabled(t *testing.T) {
	boolPtr := func(b bool) *bool { return &b }

	tests := []struct {
		name string
		cfg  *RemoteConfig
		want bool
	}{
		{"nil config defaults to true", nil, true},
		{"nil Enabled defaults to true", &RemoteConfig{Enabled: nil}, true},
		{"explicitly enabled", &RemoteConfig{Enabled: boolPtr(true)}, true},
		{"explicitly disabled", &RemoteConfig{Enabled: boolPtr(false)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.IsEnabled(); got != tt.want {
				t.Errorf("IsEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRemoteConfig_GetTimeoutSeconds(t *testing.T) {
	intPtr := func(i int) *int { return &i }

	tests := []struct {
		name string
		cfg  *RemoteConfig
		want int
	}{
		{"nil config defaults to 10", nil, 10},
		{"nil TimeoutSeconds defaults to 10", &RemoteConfig{}, 10},
		{"zero falls back to default", &RemoteConfig{TimeoutSeconds: intPtr(0)}, 10},
		{"custom timeout", &RemoteConfig{TimeoutSeconds: intPtr(12)}, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetTimeoutSeconds(); got != tt.want {
				t.Errorf("GetTimeoutSeconds() = %v, want %v", got, tt.want)
			}
		})
	}

	if got := (&RemoteConfig{TimeoutSeconds: intPtr(8)}).Timeout(); got != 8*time.Second {
		t.Errorf("Timeout() = %v, want 8s", got)
	}
}

func TestRemoteConfig_GetMaxPromptTokens(t *testing.T) {
	intPtr := func(i int) *int { return &i }

	if got := (*RemoteConfig)(nil).GetMaxPromptTokens(); got != 2000 {
		t.Errorf("nil config = %d, want 2000", got)
	}
	if got := (&RemoteConfig{MaxPromptTokens: intPtr(512)}).GetMaxPromptTokens(); got != 512 {
		t.Errorf("custom = %d, want 512", got)
	}
}

func TestMetricsConfig_IsEnabled(t *testing.T) {
	disabled := false
	if !(*MetricsConfig)(nil).IsEnabled() {
		t.Error("nil metrics config should default to enabled")
	}
	if (&MetricsConfig{Enabled: &disabled}).IsEnabled() {
		t.Error("explicitly disabled metrics should report false")
	}
}

func TestForwardConfig_Timeout(t *testing.T) {
	secs := 3
	if got := (&ForwardConfig{}).Timeout(); got != 10*time.Second {
		t.Errorf("default Timeout() = %v, want 10s", got)
	}
	if got := (&ForwardConfig{TimeoutSeconds: &secs}).Timeout(); got != 3*time.Second {
		t.Errorf("Timeout() = %v, want 3s", got)
	}
}
