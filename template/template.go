// Package template interpolates {placeholder} tokens in descriptor fields.
//
// A placeholder is an identifier made of lower case letters, digits and underscores between
// braces. Braces opened right after a dollar sign belong to shell parameter expansion
// (${VAR}, ${ARGUMENTS[@]}) and are left untouched. {{ and }} render as literal braces.
package template

import (
	"fmt"
	"sort"
	"strings"
)

// UnresolvedError lists placeholders that had no value.
type UnresolvedError struct {
	Names []string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved placeholders: %s", strings.Join(e.Names, ", "))
}

type token struct {
	literal     string
	placeholder string
}

// Placeholders returns the distinct placeholder names of text in first-seen order.
func Placeholders(text string) []string {
	var names []string
	seen := map[string]bool{}
	for _, tok := range tokenize(text) {
		if tok.placeholder == "" || seen[tok.placeholder] {
			continue
		}
		seen[tok.placeholder] = true
		names = append(names, tok.placeholder)
	}
	return names
}

// Render substitutes every placeholder of text from vars.
func Render(text string, vars map[string]string) (string, error) {
	var (
		b          strings.Builder
		unresolved []string
		seen       = map[string]bool{}
	)

	for _, tok := range tokenize(text) {
		if tok.placeholder == "" {
			b.WriteString(tok.literal)
			continue
		}

		value, ok := vars[tok.placeholder]
		if !ok {
			if !seen[tok.placeholder] {
				seen[tok.placeholder] = true
				unresolved = append(unresolved, tok.placeholder)
			}
			continue
		}
		b.WriteString(value)
	}

	if len(unresolved) > 0 {
		sort.Strings(unresolved)
		return "", &UnresolvedError{Names: unresolved}
	}
	return b.String(), nil
}

func tokenize(text string) []token {
	var (
		tokens  []token
		literal strings.Builder
	)

	flush := func() {
		if literal.Len() > 0 {
			tokens = append(tokens, token{literal: literal.String()})
			literal.Reset()
		}
	}

	for i := 0; i < len(text); i++ {
		c := text[i]

		switch {
		case c == '{' && i+1 < len(text) && text[i+1] == '{':
			literal.WriteByte('{')
			i++
		case c == '}' && i+1 < len(text) && text[i+1] == '}':
			literal.WriteByte('}')
			i++
		case c == '$' && i+1 < len(text) && text[i+1] == '{':
			end := strings.IndexByte(text[i:], '}')
			if end < 0 {
				literal.WriteString(text[i:])
				i = len(text)
				continue
			}
			literal.WriteString(text[i : i+end+1])
			i += end
		case c == '{':
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 || !isIdentifier(text[i+1:i+1+end]) {
				literal.WriteByte(c)
				continue
			}
			flush()
			tokens = append(tokens, token{placeholder: text[i+1 : i+1+end]})
			i += end + 1
		default:
			literal.WriteByte(c)
		}
	}
	flush()

	return tokens
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
