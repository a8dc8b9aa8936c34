package main

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// compileFilters parses and compiles jq expressions given with --jq.
func compileFilters(filters []string) ([]*gojq.Code, error) {
	codes := make([]*gojq.Code, len(filters))
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		codes[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return codes, nil
}

// matchAll reports whether every filter yields a truthy first result for v.
// v is round-tripped through JSON so struct tags define the field names.
func matchAll(codes []*gojq.Code, v interface{}) (bool, error) {
	if len(codes) == 0 {
		return true, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	var input interface{}
	if err := json.Unmarshal(data, &input); err != nil {
		return false, err
	}

	for _, code := range codes {
		iter := code.Run(input)
		result, ok := iter.Next()
		if !ok {
			return false, nil
		}
		if err, isErr := result.(error); isErr {
			return false, err
		}
		if !isTruthy(result) {
			return false, nil
		}
	}
	return true, nil
}

func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	// Everything else (numbers, strings, objects, arrays) is truthy
	return true
}
