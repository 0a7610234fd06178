// Package jsonpath extracts transcript text from server responses that do not
// use the whisper.cpp {"text": ...} shape. Paths are dot separated keys with
// optional bracket indexes, e.g. "results[0].alternatives[0].transcript".
package jsonpath

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractText returns the string at path in body. Non-string scalars are
// formatted; objects, arrays and null count as not found.
func ExtractText(body []byte, path string) (string, bool) {
	if path == "" || !gjson.ValidBytes(body) {
		return "", false
	}
	p, err := ToGJSON(path)
	if err != nil {
		return "", false
	}
	r := gjson.GetBytes(body, p)
	switch r.Type {
	case gjson.String, gjson.Number, gjson.True, gjson.False:
		return r.String(), true
	default:
		return "", false
	}
}

// ToGJSON converts a bracket path into gjson syntax.
func ToGJSON(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	var out []string
	for _, part := range strings.Split(path, ".") {
		key, idxs, err := ParseKeyAndIndexes(part)
		if err != nil {
			return "", err
		}
		if key != "" {
			out = append(out, escapeKey(key))
		}
		for _, i := range idxs {
			out = append(out, strconv.Itoa(i))
		}
	}
	if len(out) == 0 {
		return "", fmt.Errorf("path %q selects nothing", path)
	}
	return strings.Join(out, "."), nil
}

var gjsonSpecial = strings.NewReplacer(
	`\`, `\\`, `*`, `\*`, `?`, `\?`, `|`, `\|`, `#`, `\#`, `@`, `\@`, `!`, `\!`, `=`, `\=`, `<`, `\<`, `>`, `\>`, `%`, `\%`,
)

func escapeKey(k string) string {
	return gjsonSpecial.Replace(k)
}

// ParseKeyAndIndexes splits "key[0][1]" into "key" and [0 1].
func ParseKeyAndIndexes(part string) (string, []int, error) {
	if part == "" {
		return "", nil, fmt.Errorf("empty path segment")
	}
	open := strings.IndexByte(part, '[')
	if open < 0 {
		return part, nil, nil
	}
	key := part[:open]
	rest := part[open:]
	var idxs []int
	for len(rest) > 0 {
		if rest[0] != '[' {
			return "", nil, fmt.Errorf("unexpected %q in %q", rest[:1], part)
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return "", nil, fmt.Errorf("unclosed bracket in %q", part)
		}
		n, err := strconv.Atoi(rest[1:end])
		if err != nil || n < 0 {
			return "", nil, fmt.Errorf("invalid index %q in %q", rest[1:end], part)
		}
		idxs = append(idxs, n)
		rest = rest[end+1:]
	}
	return key, idxs, nil
}
