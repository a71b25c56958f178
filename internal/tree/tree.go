// Package tree implements the nested-map operations shared by the global YAML
// config and the per-lab JSON config: template filling, override merging and
// dotted-path access.
//
// Only map[string]interface{} nodes are descended into. Lists and scalars are
// leaves and are replaced wholesale.
package tree

import (
	"fmt"
	"strings"
)

// Map is a decoded YAML or JSON object.
type Map = map[string]interface{}

// Fill adds every key of tmpl that dst lacks, recursing into nested maps.
// Values already present in dst are never replaced. dst is modified in place
// and returned; a nil dst starts empty.
func Fill(dst, tmpl Map) Map {
	if dst == nil {
		dst = Map{}
	}
	for k, tv := range tmpl {
		dv, ok := dst[k]
		if !ok {
			dst[k] = Clone(tv)
			continue
		}
		dm, dIsMap := dv.(Map)
		tm, tIsMap := tv.(Map)
		if dIsMap && tIsMap {
			dst[k] = Fill(dm, tm)
		}
	}
	return dst
}

// Merge returns a new map holding base overlaid by override. Override wins at
// every leaf; nested maps merge key by key.
func Merge(base, override Map) Map {
	out := Clone(base).(Map)
	if out == nil {
		out = Map{}
	}
	for k, ov := range override {
		om, oIsMap := ov.(Map)
		bm, bIsMap := out[k].(Map)
		if oIsMap && bIsMap {
			out[k] = Merge(bm, om)
			continue
		}
		out[k] = Clone(ov)
	}
	return out
}

// Clone deep-copies maps and slices; scalars are returned as is.
func Clone(v interface{}) interface{} {
	switch t := v.(type) {
	case Map:
		if t == nil {
			return Map(nil)
		}
		out := make(Map, len(t))
		for k, e := range t {
			out[k] = Clone(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	default:
		return v
	}
}

// Get resolves a dotted path such as "server.default_port". The second result
// is false when any segment is missing or an intermediate value is not a map.
func Get(m Map, dotPath string) (interface{}, bool) {
	if m == nil || dotPath == "" {
		return nil, false
	}
	var cur interface{} = m
	for _, key := range strings.Split(dotPath, ".") {
		node, ok := cur.(Map)
		if !ok {
			return nil, false
		}
		cur, ok = node[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set assigns v at a dotted path, creating intermediate maps as needed.
// It fails when an existing intermediate value is not a map.
func Set(m Map, dotPath string, v interface{}) error {
	if dotPath == "" {
		return fmt.Errorf("empty key")
	}
	keys := strings.Split(dotPath, ".")
	node := m
	for i, key := range keys[:len(keys)-1] {
		next, ok := node[key]
		if !ok {
			child := Map{}
			node[key] = child
			node = child
			continue
		}
		child, ok := next.(Map)
		if !ok {
			return fmt.Errorf("%s is not a section", strings.Join(keys[:i+1], "."))
		}
		node = child
	}
	node[keys[len(keys)-1]] = v
	return nil
}

// Walk calls fn for every leaf with its dotted path and the key it is stored
// under. fn may return a replacement value; returning the input keeps it.
func Walk(m Map, fn func(path, key string, v interface{}) interface{}) {
	walk(m, "", fn)
}

func walk(m Map, prefix string, fn func(path, key string, v interface{}) interface{}) {
	for k, v := range m {
		p := k
		if prefix != "" {
			p = prefix + "." + k
		}
		if child, ok := v.(Map); ok {
			walk(child, p, fn)
			continue
		}
		m[k] = fn(p, k, v)
	}
}
