package docstore

import "fmt"

// ReconcileResult is the collection to persist and whether the change set
// was discarded in favour of the caller's final set.
type ReconcileResult[T Record] struct {
	Items    []T
	FellBack bool
	Reason   string
}

// Reconcile applies changes to previous: removed keys are dropped, modified
// keys replaced in place, added records appended. If the keys of the result
// differ from the keys of final (or the result repeats a key) the result is
// discarded and a copy of final is returned instead.
func Reconcile[T Record](previous []T, changes ChangeSet[T], final []T) ReconcileResult[T] {
	removed := make(map[string]struct{}, len(changes.Removed))
	for _, item := range changes.Removed {
		removed[item.RecordKey()] = struct{}{}
	}
	modified := make(map[string]T, len(changes.Modified))
	for _, item := range changes.Modified {
		modified[item.RecordKey()] = item
	}

	items := make([]T, 0, len(previous)+len(changes.Added))
	for _, item := range previous {
		key := item.RecordKey()
		if _, gone := removed[key]; gone {
			continue
		}
		if replacement, ok := modified[key]; ok {
			item = replacement
		}
		items = append(items, item)
	}
	items = append(items, changes.Added...)

	if reason := keyMismatch(items, final); reason != "" {
		return ReconcileResult[T]{
			Items:    append(make([]T, 0, len(final)), final...),
			FellBack: true,
			Reason:   reason,
		}
	}
	return ReconcileResult[T]{Items: items}
}

func keyMismatch[T Record](items, final []T) string {
	got := make(map[string]struct{}, len(items))
	for _, item := range items {
		key := item.RecordKey()
		if _, dup := got[key]; dup {
			return fmt.Sprintf("change set produces duplicate key %q", key)
		}
		got[key] = struct{}{}
	}
	want := make(map[string]struct{}, len(final))
	for _, item := range final {
		want[item.RecordKey()] = struct{}{}
	}
	if len(got) != len(want) {
		return fmt.Sprintf("change set yields %d keys, final set has %d", len(got), len(want))
	}
	for key := range want {
		if _, ok := got[key]; !ok {
			return fmt.Sprintf("key %q missing from reconciled set", key)
		}
	}
	return ""
}

// duplicateKey returns the first key repeated in items.
func duplicateKey[T Record](items []T) (string, bool) {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		key := item.RecordKey()
		if _, ok := seen[key]; ok {
			return key, true
		}
		seen[key] = struct{}{}
	}
	return "", false
}
