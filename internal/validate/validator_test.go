package validate

import (
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/idilsaglam/tasklist/internal/model"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)

func newFixed() *Validator {
	return New(WithClock(func() time.Time { return fixedNow }))
}

func TestText(t *testing.T) {
	v := New()
	cases := []struct {
		name      string
		in        string
		valid     bool
		code      Code
		sanitized string
	}{
		{"plain", "Buy milk", true, "", "Buy milk"},
		{"trimmed", "  Walk dog \t", true, "", "Walk dog"},
		{"empty", "", false, CodeEmptyText, ""},
		{"blank", "   \n ", false, CodeEmptyText, ""},
		{"max length", strings.Repeat("a", 200), true, "", strings.Repeat("a", 200)},
		{"too long", strings.Repeat("a", 201), false, CodeTooLong, strings.Repeat("a", 200)},
		{"script", "<script>", false, CodeIllegalCharacters, "&lt;script&gt;"},
		{"angle", "a > b", false, CodeIllegalCharacters, "a &gt; b"},
		{"control chars", "a\x00b\x07c", true, "", "abc"},
		{"escaped", `Tom & "Jerry"`, true, "", "Tom &amp; &#34;Jerry&#34;"},
		{"entity lookalike", "&lt;script&gt;", true, "", "&amp;lt;script&amp;gt;"},
		{"typed entity", "AT&amp;T docs", true, "", "AT&amp;amp;T docs"},
		{"runes", strings.Repeat("é", 200), true, "", strings.Repeat("é", 200)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := v.Text(tc.in)
			if r.Valid != tc.valid {
				t.Fatalf("valid = %v, want %v (errors %v)", r.Valid, tc.valid, r.Errors)
			}
			if tc.code != "" && !HasCode(r.Errors, tc.code) {
				t.Fatalf("expected %s in %v", tc.code, r.Errors)
			}
			if r.Sanitized != tc.sanitized {
				t.Fatalf("sanitized = %q, want %q", r.Sanitized, tc.sanitized)
			}
		})
	}
}

func TestTextTooShort(t *testing.T) {
	v := New(WithRules(Rules{MinLength: 3}))
	r := v.Text("ab")
	if r.Valid || !HasCode(r.Errors, CodeTooShort) {
		t.Fatalf("expected TooShort, got %+v", r)
	}
}

func TestStoredTextSurvivesReload(t *testing.T) {
	v := New()
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "text")
		saved := v.Text(s)
		reloaded := v.storedText(saved.Sanitized)
		if reloaded.Sanitized != saved.Sanitized {
			t.Fatalf("text %q saved as %q reloads as %q", s, saved.Sanitized, reloaded.Sanitized)
		}
		if saved.Valid && !reloaded.Valid {
			t.Fatalf("text %q accepted on input but rejected on reload: %v", s, reloaded.Errors)
		}
		if again := v.storedText(reloaded.Sanitized).Sanitized; again != reloaded.Sanitized {
			t.Fatalf("reloading %q twice gives %q", reloaded.Sanitized, again)
		}
	})
}

func TestStoredTextChecksUnescapedForm(t *testing.T) {
	v := New()
	cases := []struct {
		stored    string
		valid     bool
		sanitized string
	}{
		{"Tom &amp; Jerry", true, "Tom &amp; Jerry"},
		{"Tom & Jerry", true, "Tom &amp; Jerry"},
		{"&amp;lt;script&amp;gt;", true, "&amp;lt;script&amp;gt;"},
		{"&lt;script&gt;", false, "&lt;script&gt;"},
		{"<b>", false, "&lt;b&gt;"},
	}
	for _, tc := range cases {
		r := v.storedText(tc.stored)
		if r.Valid != tc.valid || r.Sanitized != tc.sanitized {
			t.Fatalf("storedText(%q) = valid %v %q, want valid %v %q", tc.stored, r.Valid, r.Sanitized, tc.valid, tc.sanitized)
		}
		if !tc.valid && !HasCode(r.Errors, CodeIllegalCharacters) {
			t.Fatalf("storedText(%q): expected IllegalCharacters, got %v", tc.stored, r.Errors)
		}
	}
}

func TestValidTextAlwaysAccepted(t *testing.T) {
	v := New()
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.StringMatching(`[A-Za-z0-9][A-Za-z0-9 .,!?&'-]{0,198}[A-Za-z0-9]?`).Draw(t, "text")
		r := v.Text(s)
		if !r.Valid {
			t.Fatalf("rejected %q: %v", s, r.Errors)
		}
		if r.Sanitized == "" {
			t.Fatalf("empty sanitized text for %q", s)
		}
	})
}

func TestID(t *testing.T) {
	v := New()
	for _, ok := range []any{"abc", "a-b_c9", "lx2k3-9f8e7d6c5b"} {
		if r := v.ID(ok); !r.Valid {
			t.Errorf("ID(%v) rejected: %v", ok, r.Errors)
		}
	}
	for _, bad := range []any{"", "has space", "semi;colon", strings.Repeat("a", 65), 42, nil} {
		if r := v.ID(bad); r.Valid {
			t.Errorf("ID(%v) accepted", bad)
		}
	}
}

func TestCompleted(t *testing.T) {
	v := New()
	if !v.Completed(true).Valid || !v.Completed(false).Valid {
		t.Fatalf("booleans rejected")
	}
	if r := v.Completed("true"); r.Valid || !HasCode(r.Errors, CodeInvalidType) {
		t.Fatalf("string accepted as completed flag: %+v", r)
	}
}

func TestTimestamp(t *testing.T) {
	v := New()
	if r := v.Timestamp("2024-03-01T12:00:00.123Z", "createdAt"); !r.Valid {
		t.Fatalf("valid timestamp rejected: %v", r.Errors)
	}
	cases := map[string]any{
		"wrong shape":  "2024-03-01 12:00:00",
		"no millis":    "2024-03-01T12:00:00Z",
		"impossible":   "2024-02-30T10:00:00.000Z",
		"bad hour":     "2024-03-01T25:00:00.000Z",
		"not a string": 1709294400000,
		"offset not Z": "2024-03-01T12:00:00.000+01:00",
	}
	for name, in := range cases {
		r := v.Timestamp(in, "updatedAt")
		if r.Valid {
			t.Errorf("%s: %v accepted", name, in)
			continue
		}
		if r.Errors[0].Field != "updatedAt" {
			t.Errorf("%s: error not attributed to field: %+v", name, r.Errors[0])
		}
	}
}

func TestRecordRepairsMissingFields(t *testing.T) {
	v := newFixed()
	r := v.Record(map[string]any{"id": "abc", "text": "  Buy milk "})
	if !r.Valid {
		t.Fatalf("unexpected errors %v", r.Errors)
	}
	want := model.Record{
		ID:        "abc",
		Text:      "Buy milk",
		CreatedAt: model.NewTimestamp(fixedNow),
		UpdatedAt: model.NewTimestamp(fixedNow),
	}
	if r.Sanitized != want {
		t.Fatalf("got %+v, want %+v", r.Sanitized, want)
	}
}

func TestRecordRejectsBadFieldsButStillSanitizes(t *testing.T) {
	v := newFixed()
	r := v.Record(map[string]any{
		"id":        "bad id",
		"text":      "<b>",
		"completed": "yes",
		"createdAt": "2024-01-02T00:00:00.000Z",
		"updatedAt": "2024-01-01T00:00:00.000Z",
	})
	if r.Valid {
		t.Fatalf("expected invalid record")
	}
	for _, code := range []Code{CodeInvalidID, CodeIllegalCharacters, CodeInvalidType, CodeTimestampOrder} {
		if !HasCode(r.Errors, code) {
			t.Errorf("missing %s in %v", code, r.Errors)
		}
	}
	if r.Sanitized.Text != "&lt;b&gt;" {
		t.Errorf("unexpected sanitized text %q", r.Sanitized.Text)
	}
	if r.Sanitized.UpdatedAt.Before(r.Sanitized.CreatedAt.Time) {
		t.Errorf("repaired record still has updatedAt before createdAt")
	}
}

func TestRecordTreatsNullCompletedAsMissing(t *testing.T) {
	r := newFixed().Record(map[string]any{"id": "a", "text": "x", "completed": nil})
	if !r.Valid {
		t.Fatalf("unexpected errors %v", r.Errors)
	}
	if r.Sanitized.Completed {
		t.Fatalf("null completed should default to false")
	}
}

func TestRecordMissingIDAndText(t *testing.T) {
	r := New().Record(map[string]any{})
	if r.Valid || !HasCode(r.Errors, CodeMissingField) || len(r.Errors) != 2 {
		t.Fatalf("expected two missing field errors, got %v", r.Errors)
	}
}

func TestRecordListKeepsFirstDuplicate(t *testing.T) {
	v := newFixed()
	res := v.RecordList([]map[string]any{
		{"id": "a", "text": "first"},
		{"id": "b", "text": ""},
		{"id": "a", "text": "second"},
		{"id": "c", "text": "third"},
	})
	if res.Valid {
		t.Fatalf("expected errors to be reported")
	}
	if !HasCode(res.Errors, CodeDuplicateID) || !HasCode(res.Errors, CodeEmptyText) {
		t.Fatalf("unexpected errors %v", res.Errors)
	}
	var got []string
	for _, r := range res.Records {
		got = append(got, r.ID+":"+r.Text)
	}
	if strings.Join(got, ",") != "a:first,c:third" {
		t.Fatalf("unexpected records %v", got)
	}
	for _, fe := range res.Errors {
		if fe.Code == CodeEmptyText && fe.Field != "records[1].text" {
			t.Fatalf("error not located: %+v", fe)
		}
	}
}

func TestUpdatePatch(t *testing.T) {
	v := newFixed()

	r := v.UpdatePatch(map[string]any{"text": " new text ", "completed": true})
	if !r.Valid {
		t.Fatalf("unexpected errors %v", r.Errors)
	}
	if *r.Patch.Text != "new text" || !*r.Patch.Completed {
		t.Fatalf("unexpected patch %+v", r.Patch)
	}
	if r.Patch.UpdatedAt != model.NewTimestamp(fixedNow) {
		t.Fatalf("patch not stamped: %v", r.Patch.UpdatedAt)
	}

	r = v.UpdatePatch(map[string]any{"id": "x", "text": "ok"})
	if r.Valid || !HasCode(r.Errors, CodeUnknownField) {
		t.Fatalf("expected UnknownField, got %+v", r)
	}
	if !r.Patch.UpdatedAt.IsZero() {
		t.Fatalf("rejected patch must not be stamped")
	}

	if r := v.UpdatePatch(nil); r.Valid || !HasCode(r.Errors, CodeEmptyPatch) {
		t.Fatalf("expected EmptyPatch, got %+v", r)
	}
	if r := v.UpdatePatch(map[string]any{"completed": 1}); r.Valid {
		t.Fatalf("non-boolean completed accepted")
	}
}

func TestPatchApplyNeverMovesUpdatedAtBack(t *testing.T) {
	later := model.NewTimestamp(fixedNow.Add(time.Hour))
	rec := model.Record{ID: "a", Text: "x", UpdatedAt: later}
	done := true
	got := Patch{Completed: &done, UpdatedAt: model.NewTimestamp(fixedNow)}.Apply(rec)
	if got.UpdatedAt != later || !got.Completed {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestNewRecord(t *testing.T) {
	v := newFixed()
	r := v.NewRecord("Buy milk")
	if !r.Valid || r.Record == nil {
		t.Fatalf("unexpected result %+v", r)
	}
	rec := *r.Record
	if rec.Completed || rec.CreatedAt != rec.UpdatedAt || rec.CreatedAt != model.NewTimestamp(fixedNow) {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !v.ID(rec.ID).Valid {
		t.Fatalf("generated id %q fails validation", rec.ID)
	}

	if r := v.NewRecord("   "); r.Valid || r.Record != nil {
		t.Fatalf("blank text produced a record")
	}
}

func TestInputEntitiesAreKeptLiterally(t *testing.T) {
	v := newFixed()
	r := v.NewRecord("&lt;script&gt;")
	if !r.Valid || r.Record.Text != "&amp;lt;script&amp;gt;" {
		t.Fatalf("unexpected result %+v", r)
	}
	p := v.UpdatePatch(map[string]any{"text": "AT&amp;T docs"})
	if !p.Valid || *p.Patch.Text != "AT&amp;amp;T docs" {
		t.Fatalf("unexpected patch %+v", p)
	}
}

func TestNewIDsAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := NewID(fixedNow)
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
