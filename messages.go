// Copyright (C) 2023 by Posit Software, PBC
package fsb

import (
	"fmt"
	"strings"
	"sync"
)

// Message key prefixes.
const (
	fieldErrorPrefix  = "fielderror"
	recordErrorPrefix = "recorderror"
)

// notFound flags cache misses so the bundle is not re-queried for keys
// it does not contain.
const notFound = "\x00"

// defaultMessages renders each rule when no bundle overrides it.
// Parameters are substituted positionally via {0}, {1}, ...
var defaultMessages = map[string]string{
	recordErrorPrefix + "." + RuleMalformed:    "Malformed record at line {0}",
	recordErrorPrefix + "." + RuleUnidentified: "Unidentified record at line {0}",
	recordErrorPrefix + "." + RuleUnexpected:   "Unexpected record at line {0}",
	recordErrorPrefix + "." + RuleSequence:     "Expected record '{0}'",
	fieldErrorPrefix + "." + RuleRequired:      "Required field not set",
	fieldErrorPrefix + "." + RuleLiteral:       "Invalid field text, expected '{0}'",
	fieldErrorPrefix + "." + RuleMinLength:     "Field length must be at least {0} characters",
	fieldErrorPrefix + "." + RuleMaxLength:     "Field length must not exceed {1} characters",
	fieldErrorPrefix + "." + RuleRegex:         "Field text does not match pattern '{0}'",
	fieldErrorPrefix + "." + RuleMinOccurs:     "Expected at least {0} occurrences",
	fieldErrorPrefix + "." + RuleType:          "Type conversion error: {0}",
}

// MessageSource renders rule codes into error messages. A configured
// bundle overrides the defaults; lookups fall back from the most to the
// least specific key. Resolved keys are cached, including misses, so the
// source is cheap to consult per record and safe for concurrent use.
type MessageSource struct {
	bundle map[string]string
	cache  sync.Map // resolved key -> message or notFound
}

// NewMessageSource returns a message source layered over the default
// messages. The bundle may be nil.
func NewMessageSource(bundle map[string]string) *MessageSource {
	return &MessageSource{bundle: bundle}
}

// FieldErrorMessage renders a field error. The bundle is consulted with
// keys fielderror.<record>.<field>.<rule>, fielderror.<record>.<rule>
// and fielderror.<rule> before the default message for the rule.
func (m *MessageSource) FieldErrorMessage(recordName, fieldName, rule string, params []any) string {
	key := strings.Join([]string{fieldErrorPrefix, recordName, fieldName, rule}, ".")
	template := m.resolve(key, []string{
		key,
		strings.Join([]string{fieldErrorPrefix, recordName, rule}, "."),
		strings.Join([]string{fieldErrorPrefix, rule}, "."),
	})
	if template == notFound {
		template = defaultMessages[fieldErrorPrefix+"."+rule]
		if template == "" {
			return key
		}
	}
	return expand(template, params)
}

// RecordErrorMessage renders a record error, falling back from
// recorderror.<record>.<rule> to recorderror.<rule> to the default.
func (m *MessageSource) RecordErrorMessage(recordName, rule string, params []any) string {
	key := strings.Join([]string{recordErrorPrefix, recordName, rule}, ".")
	template := m.resolve(key, []string{
		key,
		strings.Join([]string{recordErrorPrefix, rule}, "."),
	})
	if template == notFound {
		template = defaultMessages[recordErrorPrefix+"."+rule]
		if template == "" {
			return key
		}
	}
	return expand(template, params)
}

// resolve looks up the first configured message along the fallback
// chain, caching the outcome under the primary key.
func (m *MessageSource) resolve(cacheKey string, chain []string) string {
	if cached, ok := m.cache.Load(cacheKey); ok {
		return cached.(string)
	}
	resolved := notFound
	if m.bundle != nil {
		for _, k := range chain {
			if msg, ok := m.bundle[k]; ok {
				resolved = msg
				break
			}
		}
	}
	m.cache.LoadOrStore(cacheKey, resolved)
	return resolved
}

// expand substitutes {0}, {1}, ... with the positional parameters.
func expand(template string, params []any) string {
	for i, p := range params {
		template = strings.ReplaceAll(template, fmt.Sprintf("{%d}", i), fmt.Sprintf("%v", p))
	}
	return template
}
