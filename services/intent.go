package services

import (
	"regexp"
	"strings"
	"unicode"
)

// Intent is what a user message is after.
type Intent int

const (
	// IntentInquiry asks for information only.
	IntentInquiry Intent = iota
	// IntentEnrollmentInterest signals interest in applying.
	IntentEnrollmentInterest
)

func (i Intent) String() string {
	switch i {
	case IntentInquiry:
		return "inquiry"
	case IntentEnrollmentInterest:
		return "enrollment_interest"
	default:
		return "unknown"
	}
}

func (i Intent) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

var enrollmentWords = map[string]bool{
	"apply": true, "applying": true, "application": true, "applications": true,
	"enroll": true, "enrol": true, "enrolling": true, "enrollment": true, "enrolment": true,
	"register": true, "registration": true,
	"deadline": true, "deadlines": true,
	"fee": true, "fees": true, "tuition": true, "cost": true,
	"candidature": true, "inscription": true, "frais": true,
}

var enrollmentPhrases = []string{
	"sign up",
	"interested in joining",
	"want to join",
	"how do i join",
	"how much does it cost",
	"contact me",
	"get in touch",
}

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// ClassifyIntent tells enrollment interest from plain inquiries. A message
// carrying an email address counts as enrollment interest.
func ClassifyIntent(message string) Intent {
	lower := strings.ToLower(message)
	if emailPattern.MatchString(lower) {
		return IntentEnrollmentInterest
	}
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if enrollmentWords[w] {
			return IntentEnrollmentInterest
		}
	}
	normalized := strings.Join(strings.Fields(lower), " ")
	for _, phrase := range enrollmentPhrases {
		if strings.Contains(normalized, phrase) {
			return IntentEnrollmentInterest
		}
	}
	return IntentInquiry
}

var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?i:my name is)\s+(\p{L}[\p{L}'\-]*(?:\s+\p{Lu}[\p{L}'\-]*){0,2})`),
	regexp.MustCompile(`\b[Ii](?: am|'m)\s+(\p{Lu}[\p{L}'\-]*(?:\s+\p{Lu}[\p{L}'\-]*){0,2})`),
	regexp.MustCompile(`\b(?i:name)\s*:\s*(\p{L}[\p{L}'\-]*(?:\s+\p{Lu}[\p{L}'\-]*){0,2})`),
}

// extractContact finds an email address and, when stated, a name in a
// message. Either may be empty.
func extractContact(message string) (name, email string) {
	email = emailPattern.FindString(message)
	for _, p := range namePatterns {
		if m := p.FindStringSubmatch(message); m != nil {
			name = strings.TrimSpace(m[1])
			break
		}
	}
	return name, email
}

var leadTopics = []struct {
	words []string
	topic string
}{
	{[]string{"tuition", "fee", "fees", "cost", "frais"}, "Tuition and fees"},
	{[]string{"deadline", "deadlines", "calendar"}, "Application deadlines"},
	{[]string{"scholarship", "scholarships"}, "Scholarships"},
	{[]string{"master", "msc"}, "Master programs"},
	{[]string{"bachelor"}, "Bachelor programs"},
	{[]string{"exchange", "international"}, "International admissions"},
}

// leadTopic names what the user asked about, looking at the given messages
// newest first.
func leadTopic(messages ...string) string {
	for i := len(messages) - 1; i >= 0; i-- {
		words := strings.FieldsFunc(strings.ToLower(messages[i]), func(r rune) bool { return !unicode.IsLetter(r) })
		for _, t := range leadTopics {
			for _, w := range words {
				for _, tw := range t.words {
					if w == tw {
						return t.topic
					}
				}
			}
		}
	}
	return DefaultLeadTopic
}
