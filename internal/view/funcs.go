// internal/view/funcs.go
//
// Template helpers shared by every page.

package view

import (
	"html/template"
	"strconv"
	"time"
)

// DefaultAvatar is shown when a user has no profile image.
const DefaultAvatar = "/static/default-profile.svg"

// Display layouts for dates.
const (
	layoutDateTime = "2006-01-02 15:04:05"
	layoutMinute   = "2006-01-02 15:04"
)

// apiLayouts are the timestamp shapes the API is known to send.
var apiLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func buildFuncMap(image ImageFunc) template.FuncMap {
	if image == nil {
		image = func(_, name string) string { return name }
	}
	return template.FuncMap{
		"dict":        dict,
		"formatCount": FormatCount,
		"formatDate":  func(s string) string { return FormatDate(s, layoutDateTime) },
		"formatShort": func(s string) string { return FormatDate(s, layoutMinute) },
		"profileImage": func(name string) string {
			if name == "" {
				return DefaultAvatar
			}
			return image("profile", name)
		},
		"postImage": func(name string) string { return image("posts", name) },
	}
}

// FormatCount abbreviates large counters: 999 → "999", 1234 → "1.2k",
// 15300 → "15k".
func FormatCount(n int) string {
	switch {
	case n >= 10000:
		return strconv.Itoa((n+500)/1000) + "k"
	case n >= 1000:
		return strconv.FormatFloat(float64(n)/1000, 'f', 1, 64) + "k"
	default:
		return strconv.Itoa(n)
	}
}

// FormatDate reformats an API timestamp in local time.  Unparseable input is
// returned unchanged and "" stays "".
func FormatDate(s, layout string) string {
	if s == "" {
		return ""
	}
	for _, l := range apiLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.Local().Format(layout)
		}
	}
	return s
}

// dict builds a map in templates: {{ dict "k" 1 "k2" "v" }}.
func dict(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		m[key] = kv[i+1]
	}
	return m
}
