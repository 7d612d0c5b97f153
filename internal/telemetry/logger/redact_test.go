package logger

import (
	"strings"
	"testing"
)

func TestRedactSensitive_Keys(t *testing.T) {
	tests := []struct {
		attr     string
		value    string
		redacted bool
	}{
		{"passphrase", "correct horse", true},
		{"db_password", "hunter2", true},
		{"client_secret", "abc", true},
		{"credential", "x", true},
		{"key", "ui/theme", false},
		{"keys", "3", false},
		{"password", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.attr, func(t *testing.T) {
			l, buf := newBufferLogger(t, "info")
			l.Info("msg", tt.attr, tt.value)

			entry := decodeEntry(t, buf)
			got, _ := entry[tt.attr].(string)
			if tt.redacted && got != redactedValue {
				t.Errorf("%s = %q, want redacted", tt.attr, got)
			}
			if !tt.redacted && got != tt.value {
				t.Errorf("%s = %q, want %q", tt.attr, got, tt.value)
			}
		})
	}
}

func TestRedactSensitive_DSN(t *testing.T) {
	l, buf := newBufferLogger(t, "info")
	l.Info("connecting", "dsn", "postgres://app:s3cret@db:5432/prefs?sslmode=disable")

	got, _ := decodeEntry(t, buf)["dsn"].(string)
	if strings.Contains(got, "s3cret") {
		t.Errorf("dsn password leaked: %s", got)
	}
	if !strings.Contains(got, "app:xxxxx@db:5432") {
		t.Errorf("dsn = %s, want masked password with user and host kept", got)
	}
}

func TestRedactSensitive_Group(t *testing.T) {
	l, buf := newBufferLogger(t, "info")
	l.Slog().WithGroup("sealed").Info("unlock", "passphrase", "pw", "service", "mail")

	group, ok := decodeEntry(t, buf)["sealed"].(map[string]any)
	if !ok {
		t.Fatal("missing sealed group")
	}
	if group["passphrase"] != redactedValue || group["service"] != "mail" {
		t.Errorf("group = %v, want passphrase redacted and service kept", group)
	}
}

func TestRedactDSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@h/db", "postgres://u:xxxxx@h/db"},
		{"postgres://u@h/db", "postgres://u@h/db"},
		{"/var/lib/kvobserve", "/var/lib/kvobserve"},
		{"host=h password=p", "host=h password=p"},
	}
	for _, tt := range tests {
		if got := RedactDSN(tt.in); got != tt.want {
			t.Errorf("RedactDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
