package dlp

import (
	"regexp"
	"strings"
)

type patternRule struct {
	rule Rule
	re   *regexp.Regexp
}

// Redactor masks personal data in records before they leave the request
// path. A nil Redactor returns records unchanged.
type Redactor struct {
	fields   map[string]string
	patterns []patternRule
}

func NewRedactor(cfg RulesConfig) (*Redactor, error) {
	r := &Redactor{fields: make(map[string]string)}
	for _, rule := range cfg.Rules {
		if !rule.Enabled {
			continue
		}
		for _, f := range rule.Fields {
			r.fields[strings.ToLower(f)] = rule.Mask
		}
		if rule.Pattern == "" {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, err
		}
		r.patterns = append(r.patterns, patternRule{rule: rule, re: re})
	}
	return r, nil
}

// Redact returns a masked copy of data. Numbers and booleans pass through.
func (r *Redactor) Redact(data map[string]interface{}) map[string]interface{} {
	if r == nil {
		return data
	}
	out := make(map[string]interface{}, len(data))
	for key, value := range data {
		if mask, ok := r.fields[strings.ToLower(key)]; ok && value != nil {
			out[key] = mask
			continue
		}
		out[key] = r.value(value)
	}
	return out
}

// Findings names the rules that matched anywhere in data.
func (r *Redactor) Findings(data map[string]interface{}) []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var names []string
	add := func(name string) {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	var walk func(key string, value interface{})
	walk = func(key string, value interface{}) {
		if _, ok := r.fields[strings.ToLower(key)]; ok && value != nil {
			add("field:" + strings.ToLower(key))
			return
		}
		switch v := value.(type) {
		case string:
			for _, p := range r.patterns {
				if p.re.MatchString(v) {
					add(p.rule.Name)
				}
			}
		case map[string]interface{}:
			for k, nested := range v {
				walk(k, nested)
			}
		case []interface{}:
			for _, nested := range v {
				walk(key, nested)
			}
		}
	}
	for k, v := range data {
		walk(k, v)
	}
	return names
}

func (r *Redactor) value(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		masked := v
		for _, p := range r.patterns {
			masked = p.re.ReplaceAllString(masked, p.rule.Mask)
		}
		return masked
	case map[string]interface{}:
		return r.Redact(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, nested := range v {
			out[i] = r.value(nested)
		}
		return out
	default:
		return value
	}
}
