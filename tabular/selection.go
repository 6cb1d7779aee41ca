package tabular

// Selection represents a selection descriptor: the shape template that
// controls which fields a query projects and which container the result
// materializes into.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in the executor.
//
// Descriptor grammar:
//   - Field: a single field; used bare it carries list semantics
//   - Cols: a tuple of fields projected together
//   - List: ordered sequence of the inner projection
//   - Set: deduplicated collection of the inner projection
//   - Group: mapping from a group key (Field or Cols) to the grouped
//     sub-selection's container; groups nest
//
// Every variant carries exactly one logical element (a field reference, a
// tuple, or one key/value grouping pair). Malformed descriptors fail at
// Select time with a DESCRIPTOR_INVALID error.
type Selection interface {
	selection() // Marker method - seals interface to this package
}

// Field selects a single named field.
//
// At the top level of a descriptor, Field carries list semantics:
//
//	src.Select(Field{Name: "one"})
//
// projects field "one" of every surviving row, in row order.
type Field struct {
	Name string
}

func (Field) selection() {}

// Cols selects several fields projected together as a tuple per row.
type Cols struct {
	Names []string
}

func (Cols) selection() {}

// List declares an ordered sequence container around an inner projection.
// Inner must be Field or Cols.
type List struct {
	Inner Selection
}

func (List) selection() {}

// Set declares a deduplicated container around an inner projection.
// Duplicates collapse silently; iteration preserves first-seen order.
// Inner must be Field or Cols.
type Set struct {
	Inner Selection
}

func (Set) selection() {}

// Group declares a grouping: projected values are partitioned by Key
// (Field or Cols) and each partition materializes Over's container.
//
//	src.Select(Group{Key: Field{Name: "one"}, Over: List{Inner: Field{Name: "three"}}})
//
// yields a mapping from distinct "one" values (first-seen order) to the
// ordered "three" values of the matching rows.
type Group struct {
	Key  Selection
	Over Selection
}

func (Group) selection() {}

// validateSelection checks descriptor shape rules.
// top marks the descriptor root, where bare Field/Cols are permitted
// (they normalize to List semantics).
func validateSelection(sel Selection, top bool) error {
	switch s := sel.(type) {
	case nil:
		return newDescriptorError("selection descriptor is nil")
	case Field:
		if s.Name == "" {
			return newDescriptorError("field name is empty")
		}
		return nil
	case Cols:
		if len(s.Names) == 0 {
			return newDescriptorError("tuple selection has no fields")
		}
		for _, name := range s.Names {
			if name == "" {
				return newDescriptorError("tuple selection contains an empty field name")
			}
		}
		return nil
	case List:
		return validateInner(s.Inner, "list")
	case Set:
		return validateInner(s.Inner, "set")
	case Group:
		switch s.Key.(type) {
		case Field, Cols:
			if err := validateSelection(s.Key, false); err != nil {
				return err
			}
		case nil:
			return newDescriptorError("group key is nil")
		default:
			return newDescriptorError("group key must be a field or tuple, got %T", s.Key)
		}
		if s.Over == nil {
			return newDescriptorError("group value descriptor is nil")
		}
		// Grouped sub-descriptors follow the same grammar, including bare
		// Field/Cols (list semantics) and nested groups.
		return validateSelection(s.Over, true)
	default:
		return newDescriptorError("unknown selection type: %T", sel)
	}
}

func validateInner(inner Selection, container string) error {
	switch inner.(type) {
	case Field, Cols:
		return validateSelection(inner, false)
	case nil:
		return newDescriptorError("%s selection has nil inner descriptor", container)
	default:
		return newDescriptorError("%s selection must contain a field or tuple, got %T", container, inner)
	}
}

// normalizeSelection wraps bare Field/Cols descriptors in List, so the
// executor only ever sees container-rooted shapes.
func normalizeSelection(sel Selection) Selection {
	switch s := sel.(type) {
	case Field, Cols:
		return List{Inner: s}
	case Group:
		return Group{Key: s.Key, Over: normalizeSelection(s.Over)}
	default:
		return sel
	}
}

// selectionFields collects every field name a descriptor references,
// in declaration order.
func selectionFields(sel Selection) []string {
	switch s := sel.(type) {
	case Field:
		return []string{s.Name}
	case Cols:
		return append([]string(nil), s.Names...)
	case List:
		return selectionFields(s.Inner)
	case Set:
		return selectionFields(s.Inner)
	case Group:
		return append(selectionFields(s.Key), selectionFields(s.Over)...)
	default:
		return nil
	}
}
