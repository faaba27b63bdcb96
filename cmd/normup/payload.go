package main

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/kintsdev/normup"
	"github.com/pkg/errors"
)

// decodePayload parses a JSON object. Whole numbers become int64 so drivers
// bind them as integers.
func decodePayload(s string) (normup.Payload, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decode payload")
	}
	p := make(normup.Payload, len(raw))
	for k, v := range raw {
		p[k] = normalizeNumber(v)
	}
	return p, nil
}

func normalizeNumber(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumber(e)
		}
	case []any:
		for i, e := range t {
			t[i] = normalizeNumber(e)
		}
	}
	return v
}

func upsertOptions(strict bool, fields, conflict []string) []normup.UpsertOption {
	var opts []normup.UpsertOption
	if strict {
		opts = append(opts, normup.WithStrict(true))
	}
	if len(fields) > 0 {
		opts = append(opts, normup.WithFields(fields...))
	}
	if len(conflict) > 0 {
		opts = append(opts, normup.WithConflictFields(conflict...))
	}
	return opts
}

func writeJSON(w interface{ Write([]byte) (int, error) }, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "encode output")
	}
	_, err := w.Write(buf.Bytes())
	return err
}
