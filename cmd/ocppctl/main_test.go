package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/morezero/ocpp-central-system/pkg/commands"
)

const mainTestPrefix = "cmd/ocppctl:main_test"

func TestUsage_ContainsCommands(t *testing.T) {
	for _, word := range []string{"call", "stations", "--no-wait", "COMMS_URL"} {
		if !strings.Contains(usage, word) {
			t.Errorf("%s - usage should contain %q", mainTestPrefix, word)
		}
	}
}

func TestParseCallArgs(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantParams  string
		wantNoWait  bool
		wantTimeout time.Duration
		wantErr     bool
	}{
		{name: "no params", args: []string{"CP1", "ClearCache"}, wantParams: `{}`, wantTimeout: defaultTimeout},
		{name: "params", args: []string{"CP1", "Reset", `{"type":"Soft"}`}, wantParams: `{"type":"Soft"}`, wantTimeout: defaultTimeout},
		{name: "flags anywhere", args: []string{"--no-wait", "CP1", "ClearCache", "--timeout=5s"}, wantParams: `{}`, wantNoWait: true, wantTimeout: 5 * time.Second},
		{name: "raw object id tag", args: []string{"CP1", "RemoteStartTransaction", `{"idTag":{"IdToken":"RandomToken"},"connectorId":1}`, "--raw"}, wantParams: `{"idTag":{"IdToken":"RandomToken"},"connectorId":1}`, wantTimeout: defaultTimeout},
		{name: "missing action", args: []string{"CP1"}, wantErr: true},
		{name: "too many", args: []string{"CP1", "Reset", "{}", "extra"}, wantErr: true},
		{name: "bad json", args: []string{"CP1", "Reset", "{type:Soft}"}, wantErr: true},
		{name: "bad timeout", args: []string{"CP1", "Reset", "--timeout=soon"}, wantErr: true},
		{name: "unknown flag", args: []string{"CP1", "Reset", "--force"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCallArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Errorf("%s - parseCallArgs(%v) = %+v, want error", mainTestPrefix, tt.args, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("%s - parseCallArgs(%v) error = %v", mainTestPrefix, tt.args, err)
			}
			if string(got.params) != tt.wantParams || got.noWait != tt.wantNoWait || got.timeout != tt.wantTimeout {
				t.Errorf("%s - parseCallArgs(%v) = %+v", mainTestPrefix, tt.args, got)
			}
		})
	}
}

func TestCallArgs_Request(t *testing.T) {
	ca := &callArgs{station: "CP1", action: "Reset", params: []byte(`{"type":"Hard"}`), noWait: true, raw: true, timeout: 2 * time.Second}
	req := ca.request()
	if !req.Raw {
		t.Errorf("%s - raw not set on request", mainTestPrefix)
	}
	if req.Station != "CP1" || req.Action != "Reset" || req.TimeoutMs != 2000 {
		t.Errorf("%s - request = %+v", mainTestPrefix, req)
	}
	if req.Await == nil || *req.Await {
		t.Errorf("%s - await = %v, want false", mainTestPrefix, req.Await)
	}
}

func TestPrintResponse(t *testing.T) {
	var buf bytes.Buffer
	if err := printResponse(&buf, &commands.Response{Ok: true, Result: json.RawMessage(`{"status":"Accepted"}`)}); err != nil {
		t.Fatalf("%s - printResponse() error = %v", mainTestPrefix, err)
	}
	if !strings.Contains(buf.String(), `"status": "Accepted"`) {
		t.Errorf("%s - output = %q", mainTestPrefix, buf.String())
	}

	buf.Reset()
	if err := printResponse(&buf, &commands.Response{Ok: true}); err != nil || strings.TrimSpace(buf.String()) != "sent" {
		t.Errorf("%s - no-wait output = %q, %v", mainTestPrefix, buf.String(), err)
	}

	err := printResponse(&buf, &commands.Response{Error: &commands.ErrorDetail{Code: "TIMEOUT", Message: "no answer", Retryable: true}})
	if err == nil || !strings.Contains(err.Error(), "TIMEOUT") || !strings.Contains(err.Error(), "retryable") {
		t.Errorf("%s - error = %v", mainTestPrefix, err)
	}
}
