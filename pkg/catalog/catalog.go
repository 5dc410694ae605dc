// Package catalog holds the OCPP 1.6 action catalog: the request and
// confirmation type of every action, and the validation that maps a
// malformed payload onto the right protocol error kind.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/morezero/ocpp-central-system/pkg/ocppj"
)

// Catalog validates and decodes payloads by action. It is read-only after
// construction and safe for concurrent use.
type Catalog struct {
	entries  map[string]Entry
	validate *validator.Validate
}

// New builds a catalog from entries. With no entries it holds Core16.
func New(entries ...Entry) *Catalog {
	if len(entries) == 0 {
		entries = Core16
	}
	c := &Catalog{
		entries:  make(map[string]Entry, len(entries)),
		validate: newValidator(),
	}
	for _, e := range entries {
		c.entries[e.Action] = e
	}
	return c
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	for tag, values := range enumValues {
		allowed := values
		// RegisterValidation only fails for an empty or reserved tag.
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return slices.Contains(allowed, fl.Field().String())
		})
	}
	return v
}

// Lookup returns the entry for action.
func (c *Catalog) Lookup(action string) (Entry, bool) {
	e, ok := c.entries[action]
	return e, ok
}

// Actions lists the actions the given side may initiate, sorted.
func (c *Catalog) Actions(by Initiator) []string {
	var out []string
	for name, e := range c.entries {
		if e.Initiator&by != 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// DecodeRequest decodes and validates a request payload. Actions the catalog
// does not describe pass through as json.RawMessage. Failures are
// *ocppj.Error values classified by what was wrong with the payload.
func (c *Catalog) DecodeRequest(action string, raw json.RawMessage) (any, error) {
	e, ok := c.entries[action]
	if !ok {
		return raw, nil
	}
	return c.decode(raw, e.Request())
}

// DecodeConfirmation decodes and validates a confirmation payload received
// for an action this side initiated.
func (c *Catalog) DecodeConfirmation(action string, raw json.RawMessage) (any, error) {
	e, ok := c.entries[action]
	if !ok {
		return raw, nil
	}
	return c.decode(raw, e.Confirmation())
}

// EncodeConfirmation validates a handler's confirmation and encodes it.
// A nil confirmation encodes as an empty object.
func (c *Catalog) EncodeConfirmation(action string, conf any) (json.RawMessage, error) {
	if conf == nil {
		return json.RawMessage("{}"), nil
	}
	if err := c.Validate(conf); err != nil {
		return nil, fmt.Errorf("catalog: invalid %s confirmation: %w", action, err)
	}
	return ocppj.MarshalPayload(conf)
}

// Validate checks the constraints declared on a request or confirmation
// struct. Values that are not structs are accepted as they are.
func (c *Catalog) Validate(v any) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	if err := c.validate.Struct(v); err != nil {
		return classifyValidation(err)
	}
	return nil
}

func (c *Catalog) decode(raw json.RawMessage, target any) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ocppj.NewError(ocppj.FormationViolation, "payload must be a JSON object")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return nil, classifyDecode(err)
	}
	if dec.More() {
		return nil, ocppj.NewError(ocppj.FormationViolation, "payload has trailing data")
	}
	if err := c.Validate(target); err != nil {
		return nil, err
	}
	return target, nil
}

func classifyDecode(err error) *ocppj.Error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" || isContainer(typeErr.Type) || typeErr.Value == "object" || typeErr.Value == "array" {
			return ocppj.NewError(ocppj.FormationViolation, "payload does not match the expected structure").
				WithDetails(map[string]any{"field": field})
		}
		return ocppj.NewError(ocppj.TypeConstraintViolation,
			fmt.Sprintf("field %s must be of type %s, got %s", field, jsonTypeName(typeErr.Type), typeErr.Value)).
			WithDetails(map[string]any{"field": field})
	}
	var dtErr *DateTimeError
	if errors.As(err, &dtErr) {
		return ocppj.NewError(ocppj.TypeConstraintViolation, dtErr.Error())
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return ocppj.NewError(ocppj.FormationViolation, "payload is not valid JSON")
	}
	if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		field := strings.Trim(name, `"`)
		return ocppj.NewError(ocppj.FormationViolation, fmt.Sprintf("unknown field %s", field)).
			WithDetails(map[string]any{"field": field})
	}
	return ocppj.NewError(ocppj.FormationViolation, err.Error())
}

func classifyValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return ocppj.NewError(ocppj.FormationViolation, err.Error())
	}
	fe := verrs[0]
	field := fieldPath(fe.Namespace())
	details := map[string]any{"field": field, "constraint": fe.Tag()}
	switch fe.Tag() {
	case "required":
		return ocppj.NewError(ocppj.OccurrenceConstraintViolation,
			fmt.Sprintf("required field %s is missing", field)).WithDetails(details)
	case "min":
		if k := fe.Kind(); k == reflect.Slice || k == reflect.Array {
			return ocppj.NewError(ocppj.OccurrenceConstraintViolation,
				fmt.Sprintf("field %s needs at least %s entries", field, fe.Param())).WithDetails(details)
		}
	}
	desc := fmt.Sprintf("field %s violates constraint %s", field, fe.Tag())
	if fe.Param() != "" {
		desc += "=" + fe.Param()
	}
	return ocppj.NewError(ocppj.PropertyConstraintViolation, desc).WithDetails(details)
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func isContainer(t reflect.Type) bool {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return true
	case reflect.Struct:
		return t != reflect.TypeOf(DateTime{})
	}
	return false
}

func jsonTypeName(t reflect.Type) string {
	if t == nil {
		return "unknown"
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Pointer:
		return jsonTypeName(t.Elem())
	default:
		return t.String()
	}
}
