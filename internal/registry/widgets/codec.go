package widgets

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/faciam-dev/docform/pkg/schema"
)

const (
	dateLayout   = "2006-01-02"
	timeLayout   = "15:04:05"
	wireDatetime = "2006-01-02 15:04:05"
	defaultStars = 5
)

var (
	timeLayouts   = []string{"15:04:05", "15:04:05.999999", "15:04", "3:04:05 PM", "3:04 PM", "3:04PM"}
	durationPart  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(d|h|m|s)`)
	durationWhole = regexp.MustCompile(`(?i)^\s*(\d+(?:\.\d+)?\s*[dhms]\s*)+$`)
	colorPattern  = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

func builtin() []Capability {
	text := func(t schema.FieldType, w Widget) Capability {
		return Capability{Type: t, Widget: w, Decode: decodeString, Encode: encodeString, Default: emptyString}
	}
	layout := func(t schema.FieldType, id string) Capability {
		return Capability{Type: t, Widget: Widget{ID: id, Name: string(t), Layout: true},
			Decode: none, Encode: none, Default: func(schema.FieldDescriptor) any { return nil }}
	}
	return []Capability{
		text(schema.Data, Widget{ID: "text-input", Name: "Text input", Keyboard: "default"}),
		text(schema.Text, Widget{ID: "text-area", Name: "Text area", Multiline: true}),
		text(schema.LongText, Widget{ID: "text-area", Name: "Text area", Multiline: true}),
		text(schema.Select, Widget{ID: "select", Name: "Select", Picker: "options"}),
		text(schema.Link, Widget{ID: "link-picker", Name: "Link picker", Picker: "search"}),
		text(schema.DynamicLink, Widget{ID: "link-picker", Name: "Link picker", Picker: "search"}),
		text(schema.Attach, Widget{ID: "attachment", Name: "Attachment", Picker: "file"}),
		text(schema.AttachImage, Widget{ID: "image", Name: "Image", Picker: "image"}),
		text(schema.Barcode, Widget{ID: "barcode", Name: "Barcode", Picker: "camera"}),
		text(schema.ReadOnly, Widget{ID: "read-only", Name: "Read only"}),
		{Type: schema.Int, Widget: Widget{ID: "number-input", Name: "Number", Keyboard: "numeric"},
			Decode: decodeInt, Encode: encodeInt, Default: func(schema.FieldDescriptor) any { return int64(0) }},
		{Type: schema.Float, Widget: Widget{ID: "number-input", Name: "Number", Keyboard: "decimal"},
			Decode: decodeFloat, Encode: encodeFloat, Default: zeroFloat},
		{Type: schema.Currency, Widget: Widget{ID: "currency-input", Name: "Currency", Keyboard: "decimal"},
			Decode: decodeFloat, Encode: encodeFloat, Default: zeroFloat},
		{Type: schema.Percent, Widget: Widget{ID: "percent-input", Name: "Percent", Keyboard: "decimal"},
			Decode: decodeFloat, Encode: encodeFloat, Default: zeroFloat},
		{Type: schema.Check, Widget: Widget{ID: "checkbox", Name: "Checkbox"},
			Decode: decodeCheck, Encode: encodeCheck, Default: func(schema.FieldDescriptor) any { return false }},
		{Type: schema.Date, Widget: Widget{ID: "date-picker", Name: "Date", Picker: "date"},
			Decode: decodeDate, Encode: encodeString, Default: emptyString},
		{Type: schema.Datetime, Widget: Widget{ID: "datetime-picker", Name: "Date and time", Picker: "datetime"},
			Decode: decodeDatetime, Encode: encodeDatetime, Default: emptyString},
		{Type: schema.Time, Widget: Widget{ID: "time-picker", Name: "Time", Picker: "time"},
			Decode: decodeTime, Encode: encodeString, Default: emptyString},
		{Type: schema.Duration, Widget: Widget{ID: "duration-input", Name: "Duration", Keyboard: "default"},
			Decode: decodeDuration, Encode: encodeInt, Default: func(schema.FieldDescriptor) any { return int64(0) }},
		{Type: schema.Rating, Widget: Widget{ID: "rating", Name: "Rating"},
			Decode: decodeRating, Encode: encodeFloat, Default: zeroFloat},
		{Type: schema.Color, Widget: Widget{ID: "color-picker", Name: "Color", Picker: "color"},
			Decode: decodeColor, Encode: encodeString, Default: emptyString},
		{Type: schema.Table, Widget: Widget{ID: "child-table", Name: "Table"},
			Decode: decodeRows, Encode: decodeRows, Default: func(schema.FieldDescriptor) any { return []map[string]any{} }},
		layout(schema.SectionBreak, "section"),
		layout(schema.ColumnBreak, "column"),
		layout(schema.TabBreak, "tab"),
		layout(schema.Button, "button"),
	}
}

func none(schema.FieldDescriptor, any) any   { return nil }
func emptyString(schema.FieldDescriptor) any { return "" }
func zeroFloat(schema.FieldDescriptor) any   { return 0.0 }

// Str renders any scalar the way a text input would show it.
func Str(raw any) string {
	switch x := raw.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

func decodeString(_ schema.FieldDescriptor, raw any) any { return Str(raw) }
func encodeString(_ schema.FieldDescriptor, v any) any   { return Str(v) }

// Float converts raw to a finite float64. Empty or unparsable input is 0;
// thousands separators are ignored.
func Float(raw any) float64 {
	var f float64
	switch x := raw.(type) {
	case nil:
		return 0
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint64:
		f = float64(x)
	case bool:
		if x {
			f = 1
		}
	case json.Number:
		v, err := x.Float64()
		if err != nil {
			return 0
		}
		f = v
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(x), ",", "")
		if s == "" {
			return 0
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = v
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func decodeFloat(_ schema.FieldDescriptor, raw any) any { return Float(raw) }
func encodeFloat(_ schema.FieldDescriptor, v any) any   { return Float(v) }

// wholeInt truncates f to an int64. Values outside the int64 range report
// false; 2^63 itself is out of range even though float64(MaxInt64) rounds to it.
func wholeInt(f float64) (int64, bool) {
	f = math.Trunc(f)
	if f >= 1<<63 || f < -(1<<63) {
		return 0, false
	}
	return int64(f), true
}

func decodeInt(_ schema.FieldDescriptor, raw any) any {
	n, _ := wholeInt(Float(raw))
	return n
}

func encodeInt(f schema.FieldDescriptor, v any) any { return decodeInt(f, v) }

func decodeCheck(_ schema.FieldDescriptor, raw any) any {
	switch x := raw.(type) {
	case bool:
		return x
	case schema.Flag:
		return bool(x)
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "1", "true", "yes", "on", "checked":
			return true
		}
		return false
	}
	return Float(raw) != 0
}

func encodeCheck(f schema.FieldDescriptor, v any) any {
	if decodeCheck(f, v).(bool) {
		return 1
	}
	return 0
}

func parseTime(raw any) (time.Time, bool) {
	if t, ok := raw.(time.Time); ok {
		return t, !t.IsZero()
	}
	s := strings.TrimSpace(Str(raw))
	if s == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// decodeDate keeps the calendar date as written, in the offset the value carries.
func decodeDate(_ schema.FieldDescriptor, raw any) any {
	t, ok := parseTime(raw)
	if !ok {
		return ""
	}
	return t.Format(dateLayout)
}

func decodeDatetime(_ schema.FieldDescriptor, raw any) any {
	t, ok := parseTime(raw)
	if !ok {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func encodeDatetime(_ schema.FieldDescriptor, v any) any {
	t, ok := parseTime(v)
	if !ok {
		return ""
	}
	return t.UTC().Format(wireDatetime)
}

func decodeTime(_ schema.FieldDescriptor, raw any) any {
	s := strings.TrimSpace(Str(raw))
	if s == "" {
		return ""
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(timeLayout)
		}
	}
	if t, ok := parseTime(s); ok {
		return t.Format(timeLayout)
	}
	return ""
}

// decodeDuration returns whole seconds. It accepts plain numbers of seconds
// and text such as "1d 2h 30m 10s".
func decodeDuration(_ schema.FieldDescriptor, raw any) any {
	if s, ok := raw.(string); ok {
		s = strings.TrimSpace(s)
		if durationWhole.MatchString(s) {
			var total float64
			for _, m := range durationPart.FindAllStringSubmatch(s, -1) {
				n, _ := strconv.ParseFloat(m[1], 64)
				switch strings.ToLower(m[2]) {
				case "d":
					total += n * 86400
				case "h":
					total += n * 3600
				case "m":
					total += n * 60
				default:
					total += n
				}
			}
			n, ok := wholeInt(total)
			if !ok || n < 0 {
				return int64(0)
			}
			return n
		}
	}
	n, ok := wholeInt(Float(raw))
	if !ok || n < 0 {
		return int64(0)
	}
	return n
}

// FormatDuration renders seconds the way decodeDuration reads them.
func FormatDuration(seconds int64) string {
	if seconds <= 0 {
		return "0s"
	}
	units := []struct {
		suffix string
		size   int64
	}{{"d", 86400}, {"h", 3600}, {"m", 60}, {"s", 1}}
	var parts []string
	for _, u := range units {
		if n := seconds / u.size; n > 0 {
			parts = append(parts, strconv.FormatInt(n, 10)+u.suffix)
			seconds %= u.size
		}
	}
	return strings.Join(parts, " ")
}

func decodeRating(f schema.FieldDescriptor, raw any) any {
	limit := float64(defaultStars)
	if n, err := strconv.Atoi(strings.TrimSpace(f.Options)); err == nil && n > 0 {
		limit = float64(n)
	}
	return math.Min(math.Max(Float(raw), 0), limit)
}

func decodeColor(_ schema.FieldDescriptor, raw any) any {
	s := strings.TrimSpace(Str(raw))
	if !colorPattern.MatchString(s) {
		return ""
	}
	s = strings.ToLower(s)
	if len(s) == 4 {
		s = string([]byte{'#', s[1], s[1], s[2], s[2], s[3], s[3]})
	}
	return s
}

// decodeRows copies a row list. Entries that are not maps are dropped.
func decodeRows(_ schema.FieldDescriptor, raw any) any {
	out := []map[string]any{}
	switch x := raw.(type) {
	case []map[string]any:
		for _, r := range x {
			out = append(out, schema.CloneMap(r))
		}
	case []schema.Record:
		for _, r := range x {
			out = append(out, schema.CloneMap(r))
		}
	case []any:
		for _, e := range x {
			switch r := e.(type) {
			case map[string]any:
				out = append(out, schema.CloneMap(r))
			case schema.Record:
				out = append(out, schema.CloneMap(r))
			}
		}
	}
	return out
}
