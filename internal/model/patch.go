package model

// Nullable is an optional field in a partial update. The zero value leaves
// the field untouched; Null clears it; Value sets it.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

// Value returns a Nullable that sets the field to v.
func Value[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: &v}
}

// Null returns a Nullable that deletes the field.
func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

// IsNull reports whether the field is explicitly cleared.
func (n Nullable[T]) IsNull() bool {
	return n.Set && n.Value == nil
}

// Patch represents a partial update of a task.
// nil pointer => "no change"; Nullable fields additionally support "clear".
type Patch struct {
	Text        *string
	Completed   *bool
	Favorited   *bool
	Note        *string
	DueDate     Nullable[string]
	Reminder    Nullable[string]
	Repeat      Nullable[Repeat]
	AppendFiles []File
}

// IsEmpty reports whether the patch carries no change at all.
func (p Patch) IsEmpty() bool {
	return p.Text == nil && p.Completed == nil && p.Favorited == nil && p.Note == nil &&
		!p.DueDate.Set && !p.Reminder.Set && !p.Repeat.Set && len(p.AppendFiles) == 0
}

// Apply returns a copy of t with the patch applied.
func (p Patch) Apply(t Task) Task {
	out := t.Clone()
	if p.Text != nil {
		out.Text = *p.Text
	}
	if p.Completed != nil {
		out.Completed = *p.Completed
	}
	if p.Favorited != nil {
		out.Favorited = *p.Favorited
	}
	if p.Note != nil {
		out.Note = *p.Note
	}
	if p.DueDate.Set {
		out.DueDate = copyPtr(p.DueDate.Value)
	}
	if p.Reminder.Set {
		out.Reminder = copyPtr(p.Reminder.Value)
	}
	if p.Repeat.Set {
		out.Repeat = copyPtr(p.Repeat.Value)
	}
	for _, f := range p.AppendFiles {
		if !out.HasFile(f) {
			out.Files = append(out.Files, f)
		}
	}
	return out
}

func copyPtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
