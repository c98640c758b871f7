package schedule

import (
	"fmt"
	"strings"

	"github.com/kozaktomas/rollcall/internal/store"
	"gopkg.in/yaml.v3"
)

// yamlEntry mirrors one timetable row in an import file.
type yamlEntry struct {
	Class   string `yaml:"class"`
	Weekday string `yaml:"weekday"`
	Start   string `yaml:"start"`
	End     string `yaml:"end"`
	Subject string `yaml:"subject"`
}

var weekdayNames = map[string]int{
	"monday":    0,
	"tuesday":   1,
	"wednesday": 2,
	"thursday":  3,
	"friday":    4,
	"saturday":  5,
	"sunday":    6,
}

// ParseWeekday converts a weekday name or digit to the timetable numbering,
// 0=Monday through 6=Sunday.
func ParseWeekday(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if day, ok := weekdayNames[s]; ok {
		return day, nil
	}
	if len(s) == 1 && s[0] >= '0' && s[0] <= '6' {
		return int(s[0] - '0'), nil
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// ParseYAML parses a timetable import file. The file holds a list of entries:
//
//	- class: 10A
//	  weekday: monday
//	  start: "09:00"
//	  end: "10:00"
//	  subject: Mathematics
//
// Every entry is validated; the first invalid one fails the whole file so a
// partial import never happens.
func ParseYAML(data []byte) ([]store.TimetableEntry, error) {
	var raw []yamlEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse timetable file: %w", err)
	}

	entries := make([]store.TimetableEntry, 0, len(raw))
	for i, r := range raw {
		weekday, err := ParseWeekday(r.Weekday)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
		entry := store.TimetableEntry{
			ClassName: r.Class,
			Weekday:   weekday,
			Start:     r.Start,
			End:       r.End,
			Subject:   r.Subject,
		}
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
