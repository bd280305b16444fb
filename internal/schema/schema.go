// Package schema is the declarative registry of every accessibility attribute:
// stable name, display strings, section grouping, value kind and vocabulary,
// and the conditional rules tying dependent fields to their governing field.
// The registry is built once at init and never mutated; lookups on unknown
// names return the caller-supplied default because the registry is consulted
// from contexts (export mapping, admin, public forms) that may reference
// fields added or removed out of sync.
package schema

// Kind is the value kind of an accessibility field.
type Kind int

const (
	// KindBool is a tri-state yes/no/unknown flag, carried as *bool.
	KindBool Kind = iota
	// KindEnum is a single choice from a fixed vocabulary, carried as string.
	KindEnum
	// KindMulti is a set of choices from a fixed vocabulary, carried as []string.
	KindMulti
	// KindNumber is a nullable count, carried as *int.
	KindNumber
	// KindText is free text, carried as string. Text fields never count
	// toward the completion rate.
	KindText
)

// Section identifiers, in display order.
const (
	SectionTransport     = "transport"
	SectionStationnement = "stationnement"
	SectionCheminementExt = "cheminement_ext"
	SectionEntree        = "entree"
	SectionAccueil       = "accueil"
	SectionChambres      = "chambres"
	SectionSanitaires    = "sanitaires"
	SectionLabels        = "labels"
	SectionRegistre      = "registre"
	SectionConformite    = "conformite"
	SectionCommentaire   = "commentaire"
)

var sections = []string{
	SectionTransport,
	SectionStationnement,
	SectionCheminementExt,
	SectionEntree,
	SectionAccueil,
	SectionChambres,
	SectionSanitaires,
	SectionLabels,
	SectionRegistre,
	SectionConformite,
	SectionCommentaire,
}

// Record exposes field values to warn predicates that need context beyond the
// field's own value.
type Record interface {
	FieldValue(name string) any
}

// WarnFunc reports whether a value likely indicates an accessibility problem.
// It is a display hint, never a hard constraint. rec may be nil.
type WarnFunc func(value any, rec Record) bool

// Field describes one accessibility attribute.
type Field struct {
	Name            string
	Label           string
	HelpText        string
	Section         string
	Kind            Kind
	IsAccessibility bool
	NullableBool    bool
	EnumValues      []string
	WarnIf          WarnFunc
}

// ConditionalRule declares that the Dependents may only carry a value while
// the Governing field is in RequiredState. A nil or empty governing value
// counts as false.
type ConditionalRule struct {
	Governing     string
	RequiredState bool
	Dependents    []string
}

var (
	byName       map[string]*Field
	bySection    map[string][]string
	fieldNames   []string
	accessNames  []string
	nullableBool []string
)

func init() {
	byName = make(map[string]*Field, len(fields))
	bySection = make(map[string][]string, len(sections))
	for i := range fields {
		f := &fields[i]
		byName[f.Name] = f
		bySection[f.Section] = append(bySection[f.Section], f.Name)
		fieldNames = append(fieldNames, f.Name)
		if f.IsAccessibility {
			accessNames = append(accessNames, f.Name)
		}
		if f.NullableBool {
			nullableBool = append(nullableBool, f.Name)
		}
	}
}

// Get returns the field with the given name, or nil if unknown.
func Get(name string) *Field {
	return byName[name]
}

// Label returns the display label for a field, or def if the field is unknown.
func Label(name, def string) string {
	if f := byName[name]; f != nil {
		return f.Label
	}
	return def
}

// HelpText returns the help text for a field, or def if the field is unknown.
func HelpText(name, def string) string {
	if f := byName[name]; f != nil {
		return f.HelpText
	}
	return def
}

// Sections returns the section identifiers in display order.
func Sections() []string {
	out := make([]string, len(sections))
	copy(out, sections)
	return out
}

// FieldsBySection returns the field names of a section in declaration order.
// Unknown sections yield an empty list.
func FieldsBySection(section string) []string {
	src := bySection[section]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// FieldNames returns every field name in the registry's stable global order.
// This order drives merge resolution, export columns and form layout.
func FieldNames() []string {
	out := make([]string, len(fieldNames))
	copy(out, fieldNames)
	return out
}

// AccessibilityFieldNames returns the names of data-carrying accessibility
// fields, excluding metadata such as the free-text comment.
func AccessibilityFieldNames() []string {
	out := make([]string, len(accessNames))
	copy(out, accessNames)
	return out
}

// NullableBoolFieldNames returns the names of tri-state yes/no/unknown fields.
func NullableBoolFieldNames() []string {
	out := make([]string, len(nullableBool))
	copy(out, nullableBool)
	return out
}

// ConditionalRules returns the conditional-nullability rules.
func ConditionalRules() []ConditionalRule {
	out := make([]ConditionalRule, len(conditionalRules))
	copy(out, conditionalRules)
	return out
}

// GovernorSatisfied reports whether a governing field's value is in the
// required state. Booleans follow their value, with nil counting as false;
// any other kind counts as true when non-empty.
func GovernorSatisfied(value any, required bool) bool {
	state := false
	switch v := value.(type) {
	case *bool:
		state = v != nil && *v
	case bool:
		state = v
	case []string:
		state = len(v) > 0
	case string:
		state = v != ""
	case *int:
		state = v != nil
	}
	return state == required
}
