package stores

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParsePatch builds a typed patch from "field=value" pairs. Each value is
// first tried as a JSON literal and then as a string, so booleans and JSON
// fields take literals (ativo=false, payload_diff={"a":1}) while money and
// text fields take plain input (valor_pedido=1500.00, numero=123).
func ParsePatch[T any](pairs []string) (T, error) {
	var out T
	fields := make(map[string]json.RawMessage, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return out, fmt.Errorf("expected field=value, got %q", p)
		}
		raw, err := fieldValue[T](k, v)
		if err != nil {
			return out, err
		}
		fields[k] = raw
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return out, err
	}
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("patch: %w", err)
	}
	return out, nil
}

func fieldValue[T any](k, v string) (json.RawMessage, error) {
	if json.Valid([]byte(v)) && fits[T](k, json.RawMessage(v)) {
		return json.RawMessage(v), nil
	}
	asString, _ := json.Marshal(v)
	if fits[T](k, asString) {
		return asString, nil
	}
	return nil, fmt.Errorf("field %q: cannot use %q", k, v)
}

func fits[T any](k string, raw json.RawMessage) bool {
	var probe T
	b, _ := json.Marshal(map[string]json.RawMessage{k: raw})
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.DisallowUnknownFields()
	return dec.Decode(&probe) == nil
}
