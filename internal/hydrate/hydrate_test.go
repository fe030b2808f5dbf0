package hydrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDecoderFromFixtures(t *testing.T) {
	fx := loadFixture(t, "hydrate_records.json")

	for _, tc := range fx.Cases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			decoder := NewDecoder[record](buildOptions(tc)...)

			result, err := decoder.Decode(Context{Collection: tc.Collection, Source: "primary"}, []byte(tc.Payload))

			if tc.ExpectErr != "" {
				if err == nil {
					t.Fatalf("expected error %q, got nil", tc.ExpectErr)
				}
				if !strings.Contains(err.Error(), tc.ExpectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.ExpectErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if result == nil {
				t.Fatalf("expected non-nil collection")
			}
			if !reflect.DeepEqual(tc.Expect, result) {
				t.Fatalf("decoded collection mismatch:\nwant: %#v\n got: %#v", tc.Expect, result)
			}
		})
	}
}

func TestDecoderPostHookErrorStopsDecoding(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	decoder := NewDecoder[record](WithPostHook[record](func(ctx Context, r *record) error {
		calls++
		if r.ID == "b" {
			return boom
		}
		return nil
	}))

	_, err := decoder.Decode(Context{Collection: "notes.json"}, []byte(`[{"id":"a"},{"id":"b"},{"id":"c"}]`))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped hook error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected decoding to stop at the failing element, got %d calls", calls)
	}
}

func TestDecoderUseNumber(t *testing.T) {
	decoder := NewDecoder[map[string]any](WithUseNumber[map[string]any]())

	out, err := decoder.Decode(Context{Collection: "ledger.json"}, []byte(`[{"id":"a","amount":12345678901234567890}]`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got, ok := out[0]["amount"].(json.Number); !ok || got.String() != "12345678901234567890" {
		t.Fatalf("expected json.Number preserved, got %#v", out[0]["amount"])
	}
}

func buildOptions(tc fixtureCase) []DecoderOption[record] {
	options := []DecoderOption[record]{}

	for _, optName := range tc.Options {
		switch optName {
		case "use_number":
			options = append(options, WithUseNumber[record]())
		case "disallow_unknown":
			options = append(options, WithDisallowUnknownFields[record]())
		}
	}

	for _, hookName := range tc.PreHooks {
		switch hookName {
		case "legacy_name":
			options = append(options, WithPreHook[record](legacyNamePreHook))
		}
	}

	for _, hookName := range tc.PostHooks {
		switch hookName {
		case "default_tag":
			options = append(options, WithPostHook[record](defaultTagPostHook))
		}
	}

	if tc.CustomDecoder == "pipe_string" {
		options = append(options, WithCustomDecoder[record](pipeStringDecoder))
	}

	return options
}

func legacyNamePreHook(_ Context, raw json.RawMessage) (json.RawMessage, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	name, ok := payload["name"]
	if !ok {
		return raw, nil
	}
	delete(payload, "name")
	payload["title"] = name
	return json.Marshal(payload)
}

func defaultTagPostHook(ctx Context, r *record) error {
	if r == nil {
		return errors.New("record is nil")
	}
	if len(r.Tags) > 0 {
		return nil
	}
	r.Tags = []string{fmt.Sprintf("%s#%d", ctx.Collection, ctx.Index)}
	return nil
}

func pipeStringDecoder(_ Context, raw json.RawMessage) (record, error) {
	var packed string
	if err := json.Unmarshal(raw, &packed); err != nil {
		return record{}, err
	}
	id, title, ok := strings.Cut(packed, "|")
	if !ok {
		return record{}, fmt.Errorf("packed record %q has no separator", packed)
	}
	return record{ID: id, Title: title}, nil
}

type fixture struct {
	Description string        `json:"description"`
	Cases       []fixtureCase `json:"cases"`
}

type fixtureCase struct {
	Name          string   `json:"name"`
	Collection    string   `json:"collection"`
	Payload       string   `json:"payload"`
	Expect        []record `json:"expect"`
	ExpectErr     string   `json:"expectErr"`
	PreHooks      []string `json:"preHooks"`
	PostHooks     []string `json:"postHooks"`
	Options       []string `json:"options"`
	CustomDecoder string   `json:"customDecoder"`
}

type record struct {
	ID    string   `json:"id"`
	Title string   `json:"title,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

func loadFixture(t *testing.T, name string) fixture {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read hydrate fixture %q: %v", name, err)
	}
	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		t.Fatalf("failed to unmarshal hydrate fixture %q: %v", name, err)
	}
	return fx
}
