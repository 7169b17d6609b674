package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)
	entityIDPattern    = regexp.MustCompile(`^[a-z_]+\.[a-z0-9_]+$`)
)

// Source is the live state a template is evaluated against.
// *state.Store satisfies it.
type Source interface {
	// Snapshot returns a JSON object keyed by entity id. Each entity is an
	// object with at least "value" and "available" members.
	Snapshot() []byte

	// Subscribe calls fn with the id of each changed entity.
	Subscribe(fn func(entityID string)) (unsubscribe func())
}

// Template is a parsed expression.
type Template struct {
	source   string
	path     string
	entities []string
}

// Parse compiles src. It fails with ErrTemplate if a placeholder is not a
// valid entity id, braces are unbalanced, or no entity is referenced.
func Parse(src string) (*Template, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("%w: empty template", ErrTemplate)
	}

	var entities []string
	seen := make(map[string]bool)
	var badID string

	path := placeholderPattern.ReplaceAllStringFunc(src, func(m string) string {
		id := placeholderPattern.FindStringSubmatch(m)[1]
		if !entityIDPattern.MatchString(id) {
			if badID == "" {
				badID = id
			}
			return m
		}
		if !seen[id] {
			seen[id] = true
			entities = append(entities, id)
		}
		return escapeKey(id)
	})

	switch {
	case badID != "":
		return nil, fmt.Errorf("%w: %q is not an entity id", ErrTemplate, badID)
	case strings.Contains(path, "{{") || strings.Contains(path, "}}"):
		return nil, fmt.Errorf("%w: unbalanced braces in %q", ErrTemplate, src)
	case len(entities) == 0:
		return nil, fmt.Errorf("%w: %q references no entities", ErrTemplate, src)
	}

	return &Template{source: src, path: path, entities: entities}, nil
}

// MustParse is like Parse but panics on error. For tests and constants.
func MustParse(src string) *Template {
	t, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the original expression.
func (t *Template) String() string {
	return t.source
}

// Entities returns the referenced entity ids in order of first use.
func (t *Template) Entities() []string {
	return append([]string(nil), t.entities...)
}

// References reports whether the template reads entityID.
func (t *Template) References(entityID string) bool {
	for _, id := range t.entities {
		if id == entityID {
			return true
		}
	}
	return false
}

// Evaluate runs the template against a state snapshot.
func (t *Template) Evaluate(snapshot []byte) Result {
	for _, id := range t.entities {
		ent := gjson.GetBytes(snapshot, escapeKey(id))
		if !ent.Exists() {
			return TemplateError(fmt.Errorf("%w: %w: %s", ErrTemplate, ErrUnknownEntity, id))
		}
		if !ent.Get("available").Bool() {
			return TemplateError(fmt.Errorf("%w: %w: %s", ErrTemplate, ErrUnavailable, id))
		}
	}

	res := gjson.GetBytes(snapshot, t.path)
	if !res.Exists() {
		return OK(nil)
	}
	return OK(res.Value())
}

// escapeKey turns an entity id into a gjson path component.
func escapeKey(id string) string {
	return strings.ReplaceAll(id, ".", `\.`)
}
