package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
)

var resultKeys = map[string]struct{}{
	"sender_canonical": {}, "confidence": {}, "evidence": {}, "document_type": {},
	"filename_label": {}, "notes": {}, "is_private": {}, "target_folder": {}, "folder_reason": {},
}

var stringKeys = []string{"sender_canonical", "document_type", "filename_label", "notes", "target_folder", "folder_reason"}

// NormalizeAndSanitizeJSON
// - Drops unknown keys and nulls (each one is reported)
// - Coerces "0.8" -> 0.8 for confidence and "true"/"false" for is_private
// - Wraps a scalar evidence value into a list
// - Turns scalar values of string fields into strings
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 4)
	drop := func(k, why string) {
		delete(m, k)
		dropped = append(dropped, k+"("+why+")")
	}

	// 1) unknown keys and nulls
	for k, v := range maps.Clone(m) {
		if _, ok := resultKeys[k]; !ok {
			drop(k, "unknown")
			continue
		}
		if v == nil {
			drop(k, "null")
		}
	}

	// 2) confidence
	if v, ok := m["confidence"]; ok {
		switch t := v.(type) {
		case float64:
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(t, ",", ".")), 64)
			if err != nil {
				drop("confidence", "type")
			} else {
				m["confidence"] = f
			}
		default:
			drop("confidence", "type")
		}
	}

	// 3) is_private
	if v, ok := m["is_private"]; ok {
		switch t := v.(type) {
		case bool:
		case string:
			switch strings.ToLower(strings.TrimSpace(t)) {
			case "true", "ja", "yes", "1":
				m["is_private"] = true
			case "false", "nein", "no", "0", "":
				m["is_private"] = false
			default:
				drop("is_private", "type")
			}
		case float64:
			m["is_private"] = t != 0
		default:
			drop("is_private", "type")
		}
	}

	// 4) evidence
	if v, ok := m["evidence"]; ok {
		switch t := v.(type) {
		case []any:
			out := make([]any, 0, len(t))
			for _, item := range t {
				if item == nil {
					continue
				}
				out = append(out, scalarString(item))
			}
			m["evidence"] = out
		case string:
			if strings.TrimSpace(t) == "" {
				m["evidence"] = []any{}
			} else {
				m["evidence"] = []any{t}
			}
		case float64, bool:
			m["evidence"] = []any{scalarString(t)}
		default:
			drop("evidence", "type")
		}
	}

	// 5) string fields
	for _, k := range stringKeys {
		switch t := m[k].(type) {
		case float64, bool:
			m[k] = scalarString(t)
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		slices.Sort(dropped)
		logger.Warn("llm.result.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
