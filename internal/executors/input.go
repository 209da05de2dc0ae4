// Package executors provides the step executors the engine dispatches
// to, one per step type, each owning the fallback shape substituted
// when its collaborator fails.
package executors

// Step inputs arrive as decoded JSON, so numeric fields may be int or
// float64 depending on where the step was built.

func stringInput(input map[string]interface{}, key string) string {
	if v, ok := input[key].(string); ok {
		return v
	}
	return ""
}

func floatInput(input map[string]interface{}, key string, def float64) float64 {
	switch v := input[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

func intInput(input map[string]interface{}, key string, def int) int {
	switch v := input[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

func mapInput(input map[string]interface{}, key string) map[string]interface{} {
	if v, ok := input[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}
