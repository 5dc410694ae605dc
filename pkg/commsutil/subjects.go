package commsutil

import (
	"strings"
)

// Default COMMS subjects.
const (
	SubjectCommands     = "ocpp.v16.commands"
	SubjectEventsPrefix = "ocpp.v16.events"
)

var tokenReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_", "\t", "_")

// SanitizeToken makes s usable as a single subject token.
func SanitizeToken(s string) string {
	if s == "" {
		return "_"
	}
	return tokenReplacer.Replace(s)
}

// BuildMessageSubject builds the subject a station's frame is published on:
// <prefix>.<station>.<direction>.<action>.
func BuildMessageSubject(prefix, stationID, direction, action string) string {
	if action == "" {
		action = "unknown"
	}
	return strings.Join([]string{prefix, SanitizeToken(stationID), strings.ToLower(direction), SanitizeToken(action)}, ".")
}

// BuildConnectionSubject builds the subject station connect and disconnect
// events are published on: <prefix>.<station>.connection.
func BuildConnectionSubject(prefix, stationID string) string {
	return prefix + "." + SanitizeToken(stationID) + ".connection"
}
