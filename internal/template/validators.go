package template

import (
	"fmt"
	"strconv"
	"strings"
)

// Validator checks, and may normalise, a computed value.
type Validator func(raw any) (any, error)

// Number accepts numbers and numeric strings within the optional bounds.
func Number(minimum, maximum *float64) Validator {
	return func(raw any) (any, error) {
		var f float64
		switch v := raw.(type) {
		case float64:
			f = v
		case int:
			f = float64(v)
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a number", ErrValidation, v)
			}
			f = parsed
		default:
			return nil, fmt.Errorf("%w: %T is not a number", ErrValidation, raw)
		}

		if minimum != nil && f < *minimum {
			return nil, fmt.Errorf("%w: %v is below minimum %v", ErrValidation, f, *minimum)
		}
		if maximum != nil && f > *maximum {
			return nil, fmt.Errorf("%w: %v is above maximum %v", ErrValidation, f, *maximum)
		}
		return f, nil
	}
}

// Boolean accepts booleans, 0 and 1, and the strings true/false, on/off,
// yes/no, 1/0.
func Boolean() Validator {
	return func(raw any) (any, error) {
		switch v := raw.(type) {
		case bool:
			return v, nil
		case float64:
			switch v {
			case 0:
				return false, nil
			case 1:
				return true, nil
			}
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "on", "yes", "1":
				return true, nil
			case "false", "off", "no", "0":
				return false, nil
			}
		}
		return nil, fmt.Errorf("%w: %v is not a boolean", ErrValidation, raw)
	}
}

// String accepts scalars and renders them as strings.
func String() Validator {
	return func(raw any) (any, error) {
		switch v := raw.(type) {
		case string:
			return v, nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		case bool:
			return strconv.FormatBool(v), nil
		default:
			return nil, fmt.Errorf("%w: %T is not a scalar", ErrValidation, raw)
		}
	}
}

// OneOf accepts strings from a fixed set.
func OneOf(values ...string) Validator {
	allowed := make(map[string]bool, len(values))
	for _, v := range values {
		allowed[v] = true
	}
	return func(raw any) (any, error) {
		s, ok := raw.(string)
		if !ok || !allowed[s] {
			return nil, fmt.Errorf("%w: %v is not one of %v", ErrValidation, raw, values)
		}
		return s, nil
	}
}
