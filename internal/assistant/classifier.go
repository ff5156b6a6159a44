// Package assistant turns a free-text question into a reply. A local rule list
// supplies canned answers; an OpenAI-compatible responder is tried for anything
// the rules do not keep local; failures fall back to the canned or generic text.
package assistant

import (
	"regexp"
	"strings"
)

// GenericReply is returned when nothing else produced an answer.
const GenericReply = "I'm not sure I understood that. Could you try rephrasing your question?"

// Knowledge is a four-part canned answer for a health topic.
type Knowledge struct {
	Title       string
	Description string
	Warnings    []string
	Suggestions []string
	Tests       []string
}

// Render formats k as the reply text.
func (k Knowledge) Render() string {
	var b strings.Builder
	b.WriteString(k.Title)
	b.WriteString("\n\n")
	b.WriteString(k.Description)
	writeSection(&b, "Warning signs", k.Warnings)
	writeSection(&b, "Suggestions", k.Suggestions)
	writeSection(&b, "Tests a doctor may order", k.Tests)
	b.WriteString("\n\nThis is general information, not medical advice.")
	return b.String()
}

func writeSection(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n\n")
	b.WriteString(heading)
	b.WriteString(":")
	for _, item := range items {
		b.WriteString("\n- ")
		b.WriteString(item)
	}
}

// Rule is one classifier entry. Rules are evaluated in order; the first whose
// Match reports true wins.
type Rule struct {
	Name        string
	Match       func(lowered string) bool
	Answer      string
	AllowRemote bool
}

// Classification is the classifier's verdict for one question.
type Classification struct {
	Category    string
	Matched     bool
	Answer      string
	AllowRemote bool
}

// Classifier maps a question to a Classification.
type Classifier interface {
	Classify(text string) Classification
}

// RuleClassifier is a Classifier over an ordered rule list.
type RuleClassifier struct {
	rules []Rule
}

// NewRuleClassifier returns a classifier over rules. A nil slice selects
// DefaultRules.
func NewRuleClassifier(rules []Rule) *RuleClassifier {
	if rules == nil {
		rules = DefaultRules()
	}
	return &RuleClassifier{rules: rules}
}

// Classify returns the first matching rule, or an unmatched classification that
// permits a remote attempt.
func (c *RuleClassifier) Classify(text string) Classification {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return Classification{}
	}
	for _, r := range c.rules {
		if r.Match(lowered) {
			return Classification{Category: r.Name, Matched: true, Answer: r.Answer, AllowRemote: r.AllowRemote}
		}
	}
	return Classification{AllowRemote: true}
}

func matchRegexp(pattern string) func(string) bool {
	re := regexp.MustCompile(pattern)
	return re.MatchString
}

// matchWords matches any of the alternatives as whole words. Alternatives are
// regexp fragments, so a stem like `vomit\w*` covers its inflections.
func matchWords(alternatives ...string) func(string) bool {
	return matchRegexp(`\b(?:` + strings.Join(alternatives, "|") + `)\b`)
}

// DefaultRules returns the built-in rule list. Conversational rules stay local;
// health topics allow a remote answer and keep the canned one as fallback.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:   "greeting",
			Match:  matchRegexp(`^(hi|hello|hey|hiya|good (morning|afternoon|evening))\b[\s!.,]*$`),
			Answer: "Hello! I can summarise pages you visit and answer questions about them. What would you like to know?",
		},
		{
			Name:   "identity",
			Match:  matchRegexp(`\b(who|what) are you\b|\byour name\b`),
			Answer: "I'm PagePilot, an assistant that keeps your page summaries and voice notes and helps you make sense of them.",
		},
		{
			Name:   "capability",
			Match:  matchRegexp(`\bwhat can you do\b|\bhow can you help\b|^help$`),
			Answer: "I can store page summaries and voice notes, list and search your recent sessions, analyse the latest one, and answer general questions.",
		},
		knowledgeRule("fever", matchWords("fever", "feverish", "febrile", `(?:high|body|running a) temperature`), Knowledge{
			Title:       "Fever",
			Description: "A fever is a temporary rise in body temperature, usually a sign the body is fighting an infection.",
			Warnings:    []string{"Temperature above 39.4°C (103°F)", "Fever lasting more than three days", "Stiff neck, confusion or difficulty breathing"},
			Suggestions: []string{"Rest and drink plenty of fluids", "Paracetamol or ibuprofen can reduce discomfort", "Dress lightly and keep the room cool"},
			Tests:       []string{"Complete blood count", "Urine analysis", "Blood culture if infection is suspected"},
		}),
		knowledgeRule("headache", matchWords("headaches?", "migraines?", "head hurts", "head pain"), Knowledge{
			Title:       "Headache",
			Description: "Most headaches are tension-type or migraine and are not dangerous, though they can be very uncomfortable.",
			Warnings:    []string{"Sudden, severe 'worst ever' headache", "Headache after a head injury", "Weakness, vision loss or slurred speech"},
			Suggestions: []string{"Rest in a quiet, dark room", "Stay hydrated and avoid skipping meals", "Limit screen time and caffeine"},
			Tests:       []string{"Blood pressure check", "Eye examination", "CT or MRI scan when red flags are present"},
		}),
		knowledgeRule("cough_cold", matchWords(`cough\w*`, "flu", "influenza", `(?:a|common|head|chest) cold`, "sore throat", "runny nose", "sneezing"), Knowledge{
			Title:       "Cough and cold",
			Description: "Coughs and colds are usually caused by viral infections of the upper airways and clear up within one to two weeks.",
			Warnings:    []string{"Shortness of breath or chest pain", "Coughing up blood", "Symptoms lasting more than three weeks"},
			Suggestions: []string{"Warm fluids, honey and lemon", "Steam inhalation", "Rest and avoid smoking"},
			Tests:       []string{"Throat swab", "Chest X-ray for a persistent cough", "Pulse oximetry"},
		}),
		knowledgeRule("stomach", matchWords("stomach", "abdominal", "nausea", "nauseous", `vomit\w*`, `diarrh\w*`, "indigestion"), Knowledge{
			Title:       "Stomach upset",
			Description: "Stomach pain, nausea and diarrhoea are often caused by infection, food intolerance or indigestion.",
			Warnings:    []string{"Severe or constant abdominal pain", "Blood in vomit or stool", "Signs of dehydration"},
			Suggestions: []string{"Sip oral rehydration solution", "Eat bland food in small portions", "Avoid alcohol, spicy and fatty food"},
			Tests:       []string{"Stool test", "Abdominal ultrasound", "Liver function tests"},
		}),
		knowledgeRule("blood_pressure", matchWords("blood pressure", "hypertension", "bp"), Knowledge{
			Title:       "Blood pressure",
			Description: "High blood pressure rarely causes symptoms but raises the risk of heart disease and stroke over time.",
			Warnings:    []string{"Readings above 180/120 mmHg", "Chest pain or severe headache with high readings", "Sudden vision changes"},
			Suggestions: []string{"Reduce salt intake", "Exercise regularly", "Limit alcohol and stop smoking"},
			Tests:       []string{"Repeated blood pressure measurements", "Kidney function tests", "ECG"},
		}),
		knowledgeRule("diabetes", matchWords("diabetes", "diabetic", "blood sugar", "glucose", "insulin"), Knowledge{
			Title:       "Diabetes",
			Description: "Diabetes is a long-term condition in which blood sugar levels stay too high.",
			Warnings:    []string{"Extreme thirst and frequent urination", "Confusion or fainting", "Wounds that heal slowly"},
			Suggestions: []string{"Balanced diet low in refined sugar", "Regular physical activity", "Monitor blood glucose as advised"},
			Tests:       []string{"HbA1c", "Fasting blood glucose", "Oral glucose tolerance test"},
		}),
		knowledgeRule("sleep", matchWords("sleep", "sleeping", "insomnia", "asleep"), Knowledge{
			Title:       "Sleep problems",
			Description: "Difficulty falling or staying asleep is common and often linked to stress, habits or screen use.",
			Warnings:    []string{"Loud snoring with pauses in breathing", "Falling asleep during the day", "Insomnia lasting more than a month"},
			Suggestions: []string{"Keep a regular sleep schedule", "Avoid screens an hour before bed", "Limit caffeine after noon"},
			Tests:       []string{"Sleep diary", "Sleep study (polysomnography)", "Thyroid function tests"},
		}),
		knowledgeRule("stress", matchWords("stress", "stressed", "anxiety", "anxious", "overwhelmed"), Knowledge{
			Title:       "Stress",
			Description: "Stress is the body's response to pressure; ongoing stress can affect sleep, mood and health.",
			Warnings:    []string{"Thoughts of self-harm", "Panic attacks", "Stress stopping you from working or sleeping"},
			Suggestions: []string{"Breathing exercises and short walks", "Talk to someone you trust", "Break tasks into smaller steps"},
			Tests:       []string{"Questionnaire-based screening", "Thyroid function tests", "Review with a mental health professional"},
		}),
	}
}

func knowledgeRule(name string, match func(string) bool, k Knowledge) Rule {
	return Rule{Name: name, Match: match, Answer: k.Render(), AllowRemote: true}
}
