package commsutil

import (
	"bytes"
	"encoding/json"
	"errors"
)

// EncodePayload serializes a value to JSON bytes.
func EncodePayload(v any) ([]byte, error) {
	return json.Marshal(v)
}

// DecodePayload deserializes a single JSON value into v. Empty messages and
// trailing data are rejected.
func DecodePayload(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.New("commsutil: empty payload")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("commsutil: trailing data after payload")
	}
	return nil
}
