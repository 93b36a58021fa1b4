package tools

import (
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"unicode/utf8"
)

// Validate 按 Schema 校验模型给出的工具参数
//
// 参数来自 JSON 解码，数值通常为 float64；Go 调用方传入的 int 系列同样接受。
// 返回第一个不满足的约束。
func Validate(schema ParameterSchema, args map[string]interface{}) error {
	for _, name := range schema.Required {
		if _, ok := args[name]; !ok {
			return fmt.Errorf("missing required parameter: %s", name)
		}
	}

	for name, value := range args {
		prop, ok := schema.Properties[name]
		if !ok {
			if schema.AdditionalProperties {
				continue
			}
			return fmt.Errorf("unexpected parameter: %s", name)
		}
		if err := checkValue(name, prop, value); err != nil {
			return err
		}
	}
	return nil
}

func checkValue(path string, prop PropertySchema, value interface{}) error {
	// null 视为未提供
	if value == nil {
		return nil
	}

	switch prop.Type {
	case "string":
		s, ok := value.(string)
		if !ok {
			return typeMismatch(path, prop.Type, value)
		}
		return checkString(path, prop, s)

	case "number", "integer":
		n, ok := toFloat(value)
		if !ok {
			return typeMismatch(path, prop.Type, value)
		}
		if prop.Type == "integer" && n != float64(int64(n)) {
			return fmt.Errorf("parameter %s: expected integer, got %v", path, value)
		}
		if prop.Minimum != nil && n < *prop.Minimum {
			return fmt.Errorf("parameter %s: %g is below minimum %g", path, n, *prop.Minimum)
		}
		if prop.Maximum != nil && n > *prop.Maximum {
			return fmt.Errorf("parameter %s: %g is above maximum %g", path, n, *prop.Maximum)
		}

	case "boolean":
		if _, ok := value.(bool); !ok {
			return typeMismatch(path, prop.Type, value)
		}

	case "array":
		v := reflect.ValueOf(value)
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			return typeMismatch(path, prop.Type, value)
		}
		if prop.Items == nil {
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := checkValue(path+"["+strconv.Itoa(i)+"]", *prop.Items, v.Index(i).Interface()); err != nil {
				return err
			}
		}

	case "object":
		if reflect.ValueOf(value).Kind() != reflect.Map {
			return typeMismatch(path, prop.Type, value)
		}
	}
	return nil
}

func checkString(path string, prop PropertySchema, s string) error {
	n := utf8.RuneCountInString(s)
	if prop.MinLength != nil && n < *prop.MinLength {
		return fmt.Errorf("parameter %s: length %d is below minimum %d", path, n, *prop.MinLength)
	}
	if prop.MaxLength != nil && n > *prop.MaxLength {
		return fmt.Errorf("parameter %s: length %d is above maximum %d", path, n, *prop.MaxLength)
	}
	if prop.Pattern != "" {
		re, err := regexp.Compile(prop.Pattern)
		if err != nil {
			return fmt.Errorf("parameter %s: bad pattern %q: %v", path, prop.Pattern, err)
		}
		if !re.MatchString(s) {
			return fmt.Errorf("parameter %s: %q does not match %s", path, s, prop.Pattern)
		}
	}
	if len(prop.Enum) > 0 && !slices.Contains(prop.Enum, s) {
		return fmt.Errorf("parameter %s: %q is not one of %v", path, s, prop.Enum)
	}
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func typeMismatch(path, want string, got interface{}) error {
	return fmt.Errorf("parameter %s: expected %s, got %T", path, want, got)
}
