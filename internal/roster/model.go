package roster

import (
	"strings"
	"time"
)

// Student is a roster member. Staff accounts share the table with a
// distinct role; only approved students participate in attendance.
type Student struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	RollNumber   string    `json:"roll_number"`
	SystemNumber *string   `json:"system_number,omitempty"`
	Classes      []string  `json:"classes"`
	Role         string    `json:"role"`
	Approved     bool      `json:"approved"`
	DeviceID     *string   `json:"device_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NormalizeClass canonicalizes a class-section name for comparison and storage.
func NormalizeClass(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeClasses canonicalizes a class list: trimmed, lowercased,
// empties dropped, duplicates removed, original order kept.
func NormalizeClasses(classes []string) []string {
	seen := make(map[string]struct{}, len(classes))
	out := make([]string, 0, len(classes))
	for _, c := range classes {
		n := NormalizeClass(c)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// ParseClasses splits the comma-joined storage form into a normalized set.
func ParseClasses(joined string) []string {
	return NormalizeClasses(strings.Split(joined, ","))
}

// JoinClasses renders a normalized class set into the comma-joined storage form.
func JoinClasses(classes []string) string {
	return strings.Join(NormalizeClasses(classes), ",")
}

// HasClass reports whether the student is enrolled in the given section.
func (s Student) HasClass(class string) bool {
	want := NormalizeClass(class)
	for _, c := range s.Classes {
		if NormalizeClass(c) == want {
			return true
		}
	}
	return false
}
