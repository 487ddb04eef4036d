// Package schema validates decoded entity metadata against the capability
// set its type requires.
package schema

import (
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/fennwick/lorevault/internal/frontmatter"
	"github.com/fennwick/lorevault/internal/ident"
	"github.com/fennwick/lorevault/internal/models"
)

// ValidationError reports that decoded data does not conform to its type's
// schema. Issues are keyed by field.
type ValidationError struct {
	Path   string
	Issues map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Issues))
	for f, msg := range e.Issues {
		fields = append(fields, f+": "+msg)
	}
	sort.Strings(fields)
	return fmt.Sprintf("schema: %s: %s", e.Path, strings.Join(fields, "; "))
}

// Validate checks meta against the schema for entityType. path is carried
// into the error for user-facing messages.
func Validate(entityType, path string, meta frontmatter.Mapping) error {
	data, _ := frontmatter.Interface(meta).(map[string]any)
	if data == nil {
		data = map[string]any{}
	}

	keys := []*validation.KeyRules{
		validation.Key("id", validation.Required, validation.By(canonicalID)),
		validation.Key("name", validation.Required, validation.Length(1, 200)),
		validation.Key("type", validation.Required, validation.By(typeEquals(entityType))),
		validation.Key("tags", validation.By(stringSequence)).Optional(),
		validation.Key("aliases", validation.By(stringSequence)).Optional(),
		validation.Key("titles", validation.By(stringSequence)).Optional(),
	}
	for _, field := range models.LedgerFields(entityType) {
		keys = append(keys, validation.Key(field, validation.By(ledgerShape)).Optional())
	}

	err := validation.Validate(data, validation.Map(keys...).AllowExtraKeys())
	if err == nil {
		return nil
	}

	issues := map[string]string{}
	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			issues[field] = ferr.Error()
		}
	} else {
		issues["_"] = err.Error()
	}
	return &ValidationError{Path: path, Issues: issues}
}

func canonicalID(v any) error {
	s, _ := v.(string)
	if !ident.IsCanonical(s) {
		return fmt.Errorf("must be a canonical type_slug_shortcode id")
	}
	return nil
}

func typeEquals(want string) validation.RuleFunc {
	return func(v any) error {
		s, _ := v.(string)
		if !strings.EqualFold(s, want) {
			return fmt.Errorf("must be %q", want)
		}
		return nil
	}
}

func stringSequence(v any) error {
	if v == nil {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return fmt.Errorf("must be a list")
	}
	for i, item := range items {
		if _, ok := item.(string); !ok {
			return fmt.Errorf("item %d must be a string", i)
		}
	}
	return nil
}

// ledgerShape accepts the forms a relationship ledger may take after
// normalization: a list whose entries are reference strings or mappings
// carrying an id/entityId/name field.
func ledgerShape(v any) error {
	if v == nil {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return fmt.Errorf("must be a list")
	}
	for i, item := range items {
		switch t := item.(type) {
		case string:
			if strings.TrimSpace(t) == "" {
				return fmt.Errorf("item %d must not be empty", i)
			}
		case map[string]any:
			if !hasRefKey(t) {
				return fmt.Errorf("item %d must carry an id, entityId, or name", i)
			}
		default:
			return fmt.Errorf("item %d must be a reference string or mapping", i)
		}
	}
	return nil
}

func hasRefKey(m map[string]any) bool {
	for _, key := range []string{"id", "entityId", "name"} {
		if s, ok := m[key].(string); ok && s != "" {
			return true
		}
	}
	return false
}
