package domain

import (
	"encoding/json"
	"strconv"
)

// defaultParams is the fixed default set merged under client-supplied job
// parameters. A sentinel of -1 disables bring_online / copy_pin_lifetime.
var defaultParams = map[string]interface{}{
	"bring_online":      -1,
	"verify_checksum":   false,
	"copy_pin_lifetime": -1,
	"gridftp":           "",
	"job_metadata":      nil,
	"overwrite":         false,
	"reuse":             false,
	"source_spacetoken": "",
	"spacetoken":        "",
}

// EffectiveParams merges the client-supplied parameter map over the default
// set. A key explicitly present with a null value is replaced by its default:
// clients use null to mean "use the default", not "clear". Values are not
// type checked here; malformed values fail when they are parsed downstream.
func EffectiveParams(client map[string]interface{}) map[string]interface{} {
	params := make(map[string]interface{}, len(defaultParams)+len(client))
	for k, v := range defaultParams {
		params[k] = v
	}
	for k, v := range client {
		params[k] = v
	}
	for k, v := range params {
		if v == nil {
			if d, ok := defaultParams[k]; ok {
				params[k] = d
			}
		}
	}
	return params
}

// yesOrNo coerces a job parameter into a boolean. Strings follow the legacy
// convention inherited from existing clients: true iff non-empty and starting
// with 'Y' or 'y' (so "yes" is true but "ja" is not). Anything else follows
// plain truthiness for its type.
func yesOrNo(value interface{}) bool {
	switch v := value.(type) {
	case string:
		return len(v) > 0 && (v[0] == 'Y' || v[0] == 'y')
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case nil:
		return false
	default:
		return true
	}
}

// intParam parses a numeric job parameter. JSON numbers arrive as float64;
// numeric strings are accepted for compatibility with older clients.
func intParam(params map[string]interface{}, key string) (int, error) {
	switch v := params[key].(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, BadRequest("Invalid value within the request")
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, BadRequest("Invalid value within the request")
		}
		return n, nil
	default:
		return 0, BadRequest("Invalid value within the request")
	}
}

// stringParam renders a parameter as a string, tolerating absent values.
func stringParam(params map[string]interface{}, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}
