package config

import (
	"fmt"
	"strings"

	"github.com/secmc/blockparty/plugin/message"
)

// messagesFile keeps the nesting of messages.yml; keys are joined with dots.
type messagesFile struct {
	Prefix   string         `yaml:"prefix"`
	Messages map[string]any `yaml:"messages"`
}

func defaultMessages() messagesFile {
	root := map[string]any{}
	for key, tmpl := range message.Defaults {
		parts := strings.Split(key, ".")
		node := root
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[p] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = tmpl
	}
	return messagesFile{Prefix: message.DefaultPrefix, Messages: root}
}

// flatten turns the nested YAML mapping into dotted keys. yaml.v2 decodes
// nested mappings as map[any]any.
func flatten(prefix string, in map[string]any) map[string]string {
	out := map[string]string{}
	for k, v := range in {
		flattenValue(join(prefix, k), v, out)
	}
	return out
}

func flattenValue(key string, v any, out map[string]string) {
	switch v := v.(type) {
	case map[any]any:
		for k, child := range v {
			flattenValue(join(key, fmt.Sprint(k)), child, out)
		}
	case map[string]any:
		for k, child := range v {
			flattenValue(join(key, k), child, out)
		}
	case nil:
	default:
		out[key] = fmt.Sprint(v)
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
