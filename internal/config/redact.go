package config

import (
	"encoding/json"
	"strings"
)

var secretKeys = map[string]bool{
	"api_key": true, "token": true, "secret_access_key": true,
	"access_key_id": true, "postgres_dsn": true, "redis_url": true,
}

// Redacted returns a JSON-safe copy of cfg with secrets masked.
func Redacted(cfg *Config) map[string]any {
	data, _ := json.Marshal(cfg)
	var raw map[string]any
	_ = json.Unmarshal(data, &raw)
	redactMap(raw)
	return raw
}

func redactMap(m map[string]any) {
	for k, v := range m {
		switch val := v.(type) {
		case string:
			if secretKeys[k] || strings.EqualFold(k, "authorization") {
				m[k] = mask(val)
			}
		case map[string]any:
			redactMap(val)
		}
	}
}

func mask(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) > 8:
		return s[:4] + "****" + s[len(s)-4:]
	default:
		return "****"
	}
}
