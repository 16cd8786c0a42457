package calls

import "strings"

// Categories is a set of independent funnel tags. A call can be booked and an
// emergency at the same time. The zero value is the empty set ("none").
type Categories uint8

const (
	CategoryTotal Categories = 1 << iota
	CategoryBooked
	CategoryEmergency
	CategoryFollowUp
)

const CategoryNone Categories = 0

func (c Categories) Has(x Categories) bool { return c&x == x && x != 0 }

func (c Categories) String() string {
	if c == CategoryNone {
		return "none"
	}
	var parts []string
	if c.Has(CategoryTotal) {
		parts = append(parts, "total")
	}
	if c.Has(CategoryBooked) {
		parts = append(parts, "booked")
	}
	if c.Has(CategoryEmergency) {
		parts = append(parts, "emergency")
	}
	if c.Has(CategoryFollowUp) {
		parts = append(parts, "followup")
	}
	return strings.Join(parts, ",")
}

var (
	testIDPrefixes    = []string{"test", "ACtest"}
	emergencyKeywords = []string{"emergency", "leak", "flooding"}
	followUpKeywords  = []string{"call back", "follow up"}
)

// IsTestRecord reports whether id belongs to synthetic data seeded by provider
// test tooling. Such records never reach a metric.
func IsTestRecord(id string) bool {
	for _, p := range testIDPrefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}

// Classify tags a call. Test records get the empty set.
func Classify(r Record) Categories {
	if IsTestRecord(r.ID) {
		return CategoryNone
	}
	out := CategoryTotal
	if r.Booked {
		out |= CategoryBooked
	}
	if isEmergency(r) {
		out |= CategoryEmergency
	}
	if transcriptContains(r.Transcript, followUpKeywords) {
		out |= CategoryFollowUp
	}
	return out
}

// The explicit flag wins; keywords only decide for rows that were never flagged.
func isEmergency(r Record) bool {
	if r.Emergency != nil {
		return *r.Emergency
	}
	return transcriptContains(r.Transcript, emergencyKeywords)
}

func transcriptContains(transcript *string, keywords []string) bool {
	if transcript == nil || *transcript == "" {
		return false
	}
	text := strings.ToLower(*transcript)
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// Policy controls which records enter the voice-call counts.
type Policy struct {
	// IncludeNonVoice counts duration-0 records (SMS, unanswered) as calls.
	IncludeNonVoice bool
}

// Counts is the funnel summary for a set of calls.
type Counts struct {
	Booked    int `json:"booked"`
	Emergency int `json:"emergency"`
	FollowUp  int `json:"followup"`
	Total     int `json:"total"`

	// Skipped records, kept for logging; not part of the response.
	TestRecords int `json:"-"`
	NonVoice    int `json:"-"`
}

func Count(records []Record, p Policy) Counts {
	var out Counts
	for _, r := range records {
		cats := Classify(r)
		if cats == CategoryNone {
			out.TestRecords++
			continue
		}
		if !r.IsVoice() && !p.IncludeNonVoice {
			out.NonVoice++
			continue
		}
		out.Total++
		if cats.Has(CategoryBooked) {
			out.Booked++
		}
		if cats.Has(CategoryEmergency) {
			out.Emergency++
		}
		if cats.Has(CategoryFollowUp) {
			out.FollowUp++
		}
	}
	return out
}
