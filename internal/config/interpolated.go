package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

// Interpolated is a YAML scalar whose string form may contain ${...}
// references. References are resolved before the value is decoded into T,
// so `port: ${env://PORT}` still yields an int. `$${` escapes a literal
// `${`. Non-scalar nodes decode as plain T.
type Interpolated[T any] struct {
	Value T
}

func (r *Interpolated[T]) UnmarshalYAML(value *yaml.Node) (err error) {
	if value.Kind != yaml.ScalarNode || value.Tag != "!!str" {
		return value.Decode(&r.Value)
	}

	node := &yaml.Node{
		Kind: yaml.ScalarNode,
		Tag:  scalarTag(r.Value),
	}

	node.Value, err = interpolate(value.Value)
	if err != nil {
		return err
	}

	return node.Decode(&r.Value)
}

func scalarTag(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "!!null"
	}

	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "!!int"
	case reflect.Float32, reflect.Float64:
		return "!!float"
	case reflect.Bool:
		return "!!bool"
	default:
		return "!!str"
	}
}

func interpolate(src string) (string, error) {
	var output strings.Builder
	runes := []rune(src)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r != '$' {
			output.WriteRune(r)
			continue
		}

		// trailing $
		if i+1 >= len(runes) {
			output.WriteRune('$')
			break
		}

		next := runes[i+1]

		// $${ escapes the opener
		if next == '$' {
			if i+2 < len(runes) && runes[i+2] == '{' {
				output.WriteString("${")
				i += 2
				continue
			}
			output.WriteString("$")
			continue
		}

		if next != '{' {
			output.WriteRune('$')
			output.WriteRune(next)
			i++
			continue
		}

		// scan the brace-balanced reference body
		i += 2
		start := i
		depth := 1
		for i < len(runes) && depth > 0 {
			switch runes[i] {
			case '{':
				depth++
			case '}':
				depth--
			}
			if depth > 0 {
				i++
			}
		}
		if depth != 0 {
			return "", fmt.Errorf("unterminated variable")
		}

		// references may nest, resolve inside-out
		ref, err := interpolate(string(runes[start:i]))
		if err != nil {
			return "", err
		}

		resolved, err := resolveRef(ref)
		if err != nil {
			return "", err
		}
		output.WriteString(resolved)
	}

	return output.String(), nil
}

func resolveRef(ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, "env://"):
		return os.Getenv(strings.TrimPrefix(ref, "env://")), nil
	case strings.HasPrefix(ref, "file://"):
		b, err := os.ReadFile(strings.TrimPrefix(ref, "file://"))
		return string(b), err
	default:
		return "", fmt.Errorf("unsupported variable type")
	}
}
