package jsonpath

import "testing"

const response = `{
	"text": "hello",
	"data": {"items": [{"value": "a"}, {"value": "b"}]},
	"results": [{"alternatives": [{"transcript": "ok", "confidence": 0.93}]}],
	"meta.version": "v2",
	"nothing": null
}`

func TestExtractText(t *testing.T) {
	body := []byte(response)
	cases := []struct {
		path string
		want string
		ok   bool
	}{
		{"text", "hello", true},
		{"data.items[1].value", "b", true},
		{"results[0].alternatives[0].transcript", "ok", true},
		{"results[0].alternatives[0].confidence", "0.93", true},
		{"data.items[99].value", "", false},
		{"data.items", "", false},
		{"nothing", "", false},
		{"missing", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := ExtractText(body, c.path)
		if ok != c.ok || got != c.want {
			t.Errorf("%q: got %q ok=%v, want %q ok=%v", c.path, got, ok, c.want, c.ok)
		}
	}
}

func TestExtractTextInvalidJSON(t *testing.T) {
	if _, ok := ExtractText([]byte("<html>busy</html>"), "text"); ok {
		t.Fatal("expected invalid JSON to be not found")
	}
}

func TestToGJSON(t *testing.T) {
	got, err := ToGJSON("results[0].alternatives[2].transcript")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != "results.0.alternatives.2.transcript" {
		t.Fatalf("unexpected path %q", got)
	}
	if got, _ := ToGJSON("a*b"); got != `a\*b` {
		t.Fatalf("special characters not escaped: %q", got)
	}
	if _, err := ToGJSON("a..b"); err == nil {
		t.Fatal("expected error for empty segment")
	}
}

func TestParseKeyAndIndexes(t *testing.T) {
	key, idxs, err := ParseKeyAndIndexes("foo[0][1]")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if key != "foo" || len(idxs) != 2 || idxs[0] != 0 || idxs[1] != 1 {
		t.Fatalf("unexpected parse result: key=%s idxs=%v", key, idxs)
	}
	for _, bad := range []string{"foo[", "foo[x]", "foo[-1]", "foo[0]x"} {
		if _, _, err := ParseKeyAndIndexes(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}
