package mikrotik

import (
	"testing"
	"time"
)

func TestResolveMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		requested Mode
		env       string
		complete  bool
		want      Mode
	}{
		{"mock requested always mock", ModeMock, "development", true, ModeMock},
		{"mock requested in production", ModeMock, "production", true, ModeMock},
		{"real requested with address", ModeReal, "development", true, ModeReal},
		{"real requested in production with address", ModeReal, "production", true, ModeReal},
		{"real requested without address", ModeReal, "development", false, ModeMock},
		{"real requested in production without address", ModeReal, "production", false, ModeMock},
		{"nothing requested in production", "", "production", true, ModeMock},
		{"nothing requested in production any case", "", "PRODUCTION", true, ModeMock},
		{"nothing requested in development with address", "", "development", true, ModeReal},
		{"nothing requested without env with address", "", "", true, ModeReal},
		{"nothing requested without address", "", "development", false, ModeMock},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ResolveMode(tt.requested, tt.env, tt.complete)
			if got != tt.want {
				t.Fatalf("ResolveMode(%q, %q, %v) = %q, want %q", tt.requested, tt.env, tt.complete, got, tt.want)
			}
		})
	}
}

func TestResolveModeNeverRealWithoutAddress(t *testing.T) {
	t.Parallel()

	for _, requested := range []Mode{"", ModeReal, ModeMock} {
		for _, env := range []string{"", "development", "production", "staging"} {
			if got := ResolveMode(requested, env, false); got != ModeMock {
				t.Errorf("ResolveMode(%q, %q, false) = %q, want mock", requested, env, got)
			}
		}
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   Mode
		wantOK bool
	}{
		{"real", ModeReal, true},
		{" REAL ", ModeReal, true},
		{"Mock", ModeMock, true},
		{"", "", false},
		{"auto", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseMode(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseMode(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestAddress(t *testing.T) {
	t.Parallel()

	addr := Address{Host: "10.0.0.1", User: "api", Password: "secret"}
	if !addr.Complete() {
		t.Fatal("expected complete address")
	}
	if got := addr.HostPort(); got != "10.0.0.1:8728" {
		t.Errorf("HostPort() = %q, want default port", got)
	}
	if got := addr.Timeout(); got != DefaultConnectTimeout {
		t.Errorf("Timeout() = %v, want %v", got, DefaultConnectTimeout)
	}

	addr.Port = 8729
	addr.ConnectTimeout = 250 * time.Millisecond
	if got := addr.HostPort(); got != "10.0.0.1:8729" {
		t.Errorf("HostPort() = %q", got)
	}
	if got := addr.Timeout(); got != 250*time.Millisecond {
		t.Errorf("Timeout() = %v", got)
	}

	for _, incomplete := range []Address{
		{User: "api", Password: "secret"},
		{Host: "  ", User: "api", Password: "secret"},
		{Host: "10.0.0.1", Password: "secret"},
		{Host: "10.0.0.1", User: "api"},
	} {
		if incomplete.Complete() {
			t.Errorf("%+v should be incomplete", incomplete)
		}
	}
}
