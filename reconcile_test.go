package docstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	docstore "github.com/goliatone/go-docstore"
)

func TestReconcile(t *testing.T) {
	a, b, c, d := note{ID: "a"}, note{ID: "b"}, note{ID: "c"}, note{ID: "d"}
	b2 := note{ID: "b", Title: "B'"}

	cases := []struct {
		name     string
		previous []note
		changes  docstore.ChangeSet[note]
		final    []note
		want     []note
		fellBack bool
	}{
		{
			name:     "add modify remove",
			previous: []note{a, b, c},
			changes:  docstore.ChangeSet[note]{Added: []note{d}, Modified: []note{b2}, Removed: []note{c}},
			final:    []note{a, b2, d},
			want:     []note{a, b2, d},
		},
		{
			name:     "final order does not matter",
			previous: []note{a, b},
			changes:  docstore.ChangeSet[note]{Added: []note{c}},
			final:    []note{c, b, a},
			want:     []note{a, b, c},
		},
		{
			name:    "empty everything",
			changes: docstore.ChangeSet[note]{},
			want:    []note{},
		},
		{
			name:     "modified key not present is ignored",
			previous: []note{a},
			changes:  docstore.ChangeSet[note]{Modified: []note{b2}},
			final:    []note{a},
			want:     []note{a},
		},
		{
			name:     "stale change set falls back",
			previous: []note{a, b},
			changes:  docstore.ChangeSet[note]{Removed: []note{b}},
			final:    []note{a, b2, c},
			want:     []note{a, b2, c},
			fellBack: true,
		},
		{
			name:     "same size different keys falls back",
			previous: []note{a},
			changes:  docstore.ChangeSet[note]{Added: []note{b}},
			final:    []note{a, c},
			want:     []note{a, c},
			fellBack: true,
		},
		{
			name:     "duplicate key from change set falls back",
			previous: []note{a},
			changes:  docstore.ChangeSet[note]{Added: []note{a}},
			final:    []note{a},
			want:     []note{a},
			fellBack: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := docstore.Reconcile(tc.previous, tc.changes, tc.final)
			assert.Equal(t, tc.want, got.Items)
			assert.Equal(t, tc.fellBack, got.FellBack)
			if tc.fellBack {
				assert.NotEmpty(t, got.Reason)
			} else {
				assert.Empty(t, got.Reason)
			}
		})
	}
}

func TestReconcileFallbackCopiesFinal(t *testing.T) {
	final := []note{{ID: "x"}}
	got := docstore.Reconcile(nil, docstore.ChangeSet[note]{}, final)
	if !got.FellBack {
		t.Fatalf("expected fallback")
	}
	got.Items[0].Title = "changed"
	if final[0].Title != "" {
		t.Fatalf("expected final to be untouched, got %+v", final[0])
	}
}

func TestReconcileDoesNotMutatePrevious(t *testing.T) {
	previous := []note{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}}
	changes := docstore.ChangeSet[note]{Modified: []note{{ID: "a", Title: "A2"}}}

	got := docstore.Reconcile(previous, changes, []note{{ID: "a"}, {ID: "b"}})
	if got.Items[0].Title != "A2" {
		t.Fatalf("expected modification applied, got %+v", got.Items)
	}
	if previous[0].Title != "A" {
		t.Fatalf("expected previous untouched, got %+v", previous)
	}
}
