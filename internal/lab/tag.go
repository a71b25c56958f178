package lab

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Tag is a descriptive metadata value (season, week, year) stored either as
// a JSON number or a JSON string. It is written back the way it was read.
type Tag struct {
	text   string
	quoted bool
}

// TagInt returns a numeric tag
func TagInt(n int) *Tag {
	return &Tag{text: strconv.Itoa(n)}
}

// ParseTag turns operator input into a tag: all digits become a number,
// anything else is kept as text. Empty input and "null" give nil.
func ParseTag(s string) *Tag {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && !strings.HasPrefix(s, "+") {
		return TagInt(n)
	}
	return &Tag{text: s, quoted: true}
}

// Int returns the numeric value when the tag holds an integer, written either
// way
func (t *Tag) Int() (int, bool) {
	if t == nil {
		return 0, false
	}
	n, err := strconv.Atoi(t.text)
	return n, err == nil
}

// String renders the tag for display; nil renders empty
func (t *Tag) String() string {
	if t == nil {
		return ""
	}
	return t.text
}

func (t Tag) MarshalJSON() ([]byte, error) {
	if t.quoted {
		return json.Marshal(t.text)
	}
	return []byte(t.text), nil
}

func (t *Tag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Tag{text: s, quoted: true}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("metadata value must be a number or a string: %s", data)
	}
	*t = Tag{text: n.String()}
	return nil
}
