package catalog

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// recordJSON is the on-disk shape of a catalog entry.
type recordJSON struct {
	URL             string          `json:"url"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	TestType        []string        `json:"test_type"`
	JobLevels       []string        `json:"job_levels,omitempty"`
	Duration        json.RawMessage `json:"duration,omitempty"`
	RemoteSupport   yesNo           `json:"remote_support"`
	AdaptiveSupport yesNo           `json:"adaptive_support"`
	Embedding       []float32       `json:"embedding,omitempty"`
}

// UnmarshalJSON accepts the scraped catalog format: duration as a number
// or free text, support flags as "Yes"/"No" or booleans, test types as
// names or one-letter codes.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	dur, err := decodeDuration(raw.Duration)
	if err != nil {
		return err
	}

	*r = Record{
		URL:             strings.TrimSpace(raw.URL),
		Name:            raw.Name,
		Description:     raw.Description,
		JobLevels:       raw.JobLevels,
		Duration:        dur,
		RemoteSupport:   bool(raw.RemoteSupport),
		AdaptiveSupport: bool(raw.AdaptiveSupport),
		Embedding:       raw.Embedding,
	}
	for _, t := range raw.TestType {
		if strings.TrimSpace(t) != "" {
			r.TestTypes = append(r.TestTypes, ParseTestType(t))
		}
	}
	return nil
}

// MarshalJSON writes durations as integers and flags as "Yes"/"No".
func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		URL:             r.URL,
		Name:            r.Name,
		Description:     r.Description,
		JobLevels:       r.JobLevels,
		RemoteSupport:   yesNo(r.RemoteSupport),
		AdaptiveSupport: yesNo(r.AdaptiveSupport),
		Embedding:       r.Embedding,
		TestType:        make([]string, 0, len(r.TestTypes)),
	}
	for _, t := range r.TestTypes {
		out.TestType = append(out.TestType, string(t))
	}
	if r.Duration != nil {
		out.Duration = json.RawMessage(strconv.Itoa(*r.Duration))
	}
	return json.Marshal(out)
}

type yesNo bool

func (b yesNo) MarshalJSON() ([]byte, error) {
	if b {
		return []byte(`"Yes"`), nil
	}
	return []byte(`"No"`), nil
}

func (b *yesNo) UnmarshalJSON(data []byte) error {
	switch v := strings.ToLower(strings.Trim(string(data), `" `)); v {
	case "yes", "y", "true", "1":
		*b = true
	case "no", "n", "false", "0", "", "null":
		*b = false
	default:
		return fmt.Errorf("invalid yes/no value %s", data)
	}
	return nil
}

var firstNumber = regexp.MustCompile(`\d+`)

// ParseDuration extracts minutes from free text such as "30 minutes",
// "max 45" or "20-30 minutes". Ranges resolve to their first number.
func ParseDuration(text string) (int, bool) {
	m := firstNumber.FindString(text)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

func decodeDuration(raw json.RawMessage) (*int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("duration: %w", err)
		}
		if n, ok := ParseDuration(s); ok {
			return &n, nil
		}
		return nil, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("duration: %w", err)
	}
	if f < 0 {
		return nil, fmt.Errorf("duration cannot be negative: %v", f)
	}
	n := int(f)
	return &n, nil
}
