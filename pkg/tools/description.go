package tools

import (
	"fmt"
	"io"
	"reflect"
	"slices"
	"sort"
	"strings"
)

// SchemaFromStruct 根据结构体字段标签生成参数 Schema
//
// 支持的标签：json（参数名，"-" 跳过）、desc（描述）、required:"true"、
// enum（逗号分隔的可选值）。
func SchemaFromStruct(v interface{}) ParameterSchema {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return ParameterSchema{Type: "object"}
	}

	props, required := structProperties(t)
	return ParameterSchema{Type: "object", Properties: props, Required: required}
}

func structProperties(t reflect.Type) (map[string]PropertySchema, []string) {
	props := make(map[string]PropertySchema, t.NumField())
	var required []string

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}

		prop := schemaForType(field.Type)
		prop.Description = field.Tag.Get("desc")
		if enum := field.Tag.Get("enum"); enum != "" {
			prop.Enum = strings.Split(enum, ",")
		}
		props[name] = prop

		if r := field.Tag.Get("required"); r == "true" || r == "1" {
			required = append(required, name)
		}
	}
	return props, required
}

func schemaForType(t reflect.Type) PropertySchema {
	switch t.Kind() {
	case reflect.Ptr:
		return schemaForType(t.Elem())
	case reflect.String:
		return PropertySchema{Type: "string"}
	case reflect.Bool:
		return PropertySchema{Type: "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return PropertySchema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return PropertySchema{Type: "number"}
	case reflect.Slice, reflect.Array:
		items := schemaForType(t.Elem())
		return PropertySchema{Type: "array", Items: &items}
	case reflect.Struct:
		props, required := structProperties(t)
		return PropertySchema{Type: "object", Properties: props, Required: required}
	case reflect.Map:
		return PropertySchema{Type: "object"}
	}
	return PropertySchema{Type: "string"}
}

// Signature 返回工具的简短签名，如 Read(path*, offset, limit)
//
// 必需参数带 *，参数按 Required 顺序在前、其余按名称排序。
func Signature(t Tool) string {
	return t.Name() + "(" + strings.Join(paramNames(t.Parameters(), true), ", ") + ")"
}

// WriteCatalog 把工具列表按名称排序后写成可读清单
func WriteCatalog(w io.Writer, list []Tool) error {
	sorted := slices.Clone(list)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name() < sorted[j].Name() })

	for _, t := range sorted {
		if _, err := fmt.Fprintf(w, "%s\n    %s\n", Signature(t), t.Description()); err != nil {
			return err
		}
		schema := t.Parameters()
		for _, name := range paramNames(schema, false) {
			prop := schema.Properties[name]
			line := fmt.Sprintf("    - %s (%s)", name, prop.Type)
			if prop.Description != "" {
				line += ": " + prop.Description
			}
			if len(prop.Enum) > 0 {
				line += " [" + strings.Join(prop.Enum, "|") + "]"
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

func paramNames(schema ParameterSchema, mark bool) []string {
	names := make([]string, 0, len(schema.Properties))
	for _, req := range schema.Required {
		if _, ok := schema.Properties[req]; !ok {
			continue
		}
		if mark {
			names = append(names, req+"*")
		} else {
			names = append(names, req)
		}
	}

	var optional []string
	for name := range schema.Properties {
		if !slices.Contains(schema.Required, name) {
			optional = append(optional, name)
		}
	}
	sort.Strings(optional)
	return append(names, optional...)
}
