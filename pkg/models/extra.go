package models

import (
	"encoding/json"
	"reflect"
	"strings"
	"sync"
)

// Extra holds document fields this package does not model, so records written by
// newer producers survive a decode/encode round trip.
type Extra map[string]json.RawMessage

var knownFieldCache sync.Map // reflect.Type -> map[string]bool

func knownFields(t reflect.Type) map[string]bool {
	if cached, ok := knownFieldCache.Load(t); ok {
		return cached.(map[string]bool)
	}
	known := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name, _, _ := strings.Cut(tag, ",")
		if name == "" || name == "-" {
			continue
		}
		known[name] = true
	}
	knownFieldCache.Store(t, known)
	return known
}

// decodeWithExtra decodes data into v and returns the top-level keys v does not declare.
func decodeWithExtra(data []byte, v any) (Extra, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	known := knownFields(reflect.TypeOf(v).Elem())
	for k := range raw {
		if known[k] {
			delete(raw, k)
		}
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return raw, nil
}

// encodeWithExtra encodes v and merges extra keys that v does not already emit.
func encodeWithExtra(v any, extra Extra) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := merged[k]; !ok {
			merged[k] = raw
		}
	}
	return json.Marshal(merged)
}
