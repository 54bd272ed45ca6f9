package tools

import (
	"fmt"

	"github.com/nextlevelbuilder/valet/internal/valeterr"
)

// checkFields rejects any key in args not named in allowed, and any
// required key missing from args — spec.md §4.H: "missing required
// field, wrong type, extraneous field" all fail InvalidParams.
func checkFields(args map[string]interface{}, required, allowed []string) error {
	allowedSet := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		allowedSet[k] = true
	}
	for k := range args {
		if !allowedSet[k] {
			return valeterr.New(valeterr.InvalidParams, fmt.Sprintf("unexpected field %q", k))
		}
	}
	for _, k := range required {
		if _, ok := args[k]; !ok {
			return valeterr.New(valeterr.InvalidParams, fmt.Sprintf("missing required field %q", k))
		}
	}
	return nil
}

func stringField(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", valeterr.New(valeterr.InvalidParams, fmt.Sprintf("field %q must be a string", key))
	}
	return s, nil
}
