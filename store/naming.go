package store

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// TableNameOf derives a table name from the type parameter: the type name is
// snake cased and pluralised, so UserAccount becomes user_accounts.
func TableNameOf[T any]() string {
	var zero T
	return TableName(zero)
}

// TableName derives a table name from the dynamic type of model.
func TableName(model any) string {
	t := reflect.TypeOf(model)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	if t.Kind() == reflect.Map {
		return ""
	}
	name := t.Name()
	// generic instantiations carry their type arguments in the name
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	snake := toSnake(name)
	if snake == "" {
		return ""
	}
	parts := strings.Split(snake, "_")
	parts[len(parts)-1] = inflection.Plural(parts[len(parts)-1])
	return strings.Join(parts, "_")
}

// toSnake converts s to snake_case using ASCII aware rules. Punctuation is
// collapsed to a single underscore so the result is always a valid identifier
// fragment.
func toSnake(s string) string {
	if s == "" {
		return ""
	}

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	lastUnderscore := false
	sep := func() {
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					sep()
				}
			}
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false
		case unicode.IsLower(r):
			b.WriteRune(r)
			lastUnderscore = false
		case unicode.IsDigit(r):
			if i > 0 && !unicode.IsDigit(runes[i-1]) {
				sep()
			}
			b.WriteRune(r)
			lastUnderscore = false
		default:
			sep()
		}
	}

	return strings.Trim(b.String(), "_")
}
