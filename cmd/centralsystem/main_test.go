package main

import (
	"strings"
	"testing"
)

const mainTestPrefix = "cmd/centralsystem:main_test"

func TestUsage_NonEmpty(t *testing.T) {
	if len(usage) == 0 {
		t.Fatalf("%s - usage string is empty", mainTestPrefix)
	}
}

func TestUsage_ContainsCommands(t *testing.T) {
	required := []string{"serve", "migrate", "ensure-db", "clear", "seed", "DATABASE_URL", "OCPP_LISTEN_ADDR"}
	for _, word := range required {
		if !strings.Contains(usage, word) {
			t.Errorf("%s - usage should contain %q", mainTestPrefix, word)
		}
	}
}

func TestTargetDatabaseURL(t *testing.T) {
	tests := []struct {
		in      string
		name    string
		want    string
		wantErr bool
	}{
		{in: "postgres://u:p@localhost:5432/ocpp?sslmode=disable", name: "ocpp_test", want: "postgres://u:p@localhost:5432/ocpp_test?sslmode=disable"},
		{in: "postgres://u@db/x", name: "y", want: "postgres://u@db/y"},
		{in: "postgres://u@db:bad port/x", name: "y", wantErr: true},
	}
	for _, tt := range tests {
		got, err := targetDatabaseURL(tt.in, tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s - targetDatabaseURL(%q) = %q, want error", mainTestPrefix, tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("%s - targetDatabaseURL(%q) = %q, %v; want %q", mainTestPrefix, tt.in, got, err, tt.want)
		}
	}
}
