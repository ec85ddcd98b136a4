package dialogue

// Config holds the tunable parameters of the attribution heuristic.
// The keyword sets and thresholds are configuration, not constants; mis-tuning
// affects accuracy but never the structural invariants of the pipeline.
type Config struct {
	// GapThreshold is the silence duration in seconds between two segments
	// above which a speaker change is assumed.
	GapThreshold float64 `yaml:"gap_threshold" mapstructure:"gap_threshold"`
	// StrongLexicalScore is the minimum lexical score margin treated as a
	// strong signal, e.g. strong enough to override the opening-turn prior.
	StrongLexicalScore int `yaml:"strong_lexical_score" mapstructure:"strong_lexical_score"`
	// DoctorKeywords are phrases indicative of clinician speech: question
	// forms, clinical terminology, instructional phrasing.
	DoctorKeywords []string `yaml:"doctor_keywords" mapstructure:"doctor_keywords"`
	// PatientKeywords are phrases indicative of patient speech: first-person
	// symptom descriptions.
	PatientKeywords []string `yaml:"patient_keywords" mapstructure:"patient_keywords"`
}

// ApplyDefaults fills unset fields with the default heuristic parameters.
func (c *Config) ApplyDefaults() {
	if c.GapThreshold == 0 {
		c.GapThreshold = 1.5
	}
	if c.StrongLexicalScore == 0 {
		c.StrongLexicalScore = 2
	}
	if len(c.DoctorKeywords) == 0 {
		c.DoctorKeywords = defaultDoctorKeywords()
	}
	if len(c.PatientKeywords) == 0 {
		c.PatientKeywords = defaultPatientKeywords()
	}
}

func defaultDoctorKeywords() []string {
	return []string{
		"how are you",
		"since when",
		"when did",
		"have you",
		"do you have",
		"let's check",
		"let me",
		"take",
		"prescribe",
		"prescription",
		"medication",
		"therapy",
		"treatment",
		"recommend",
		"refer",
		"monitor",
		"examine",
		"sounds like",
		"thank you for sharing",
	}
}

func defaultPatientKeywords() []string {
	return []string{
		"dr.",
		"doctor",
		"i feel",
		"i've been feeling",
		"feeling",
		"i have",
		"it hurts",
		"hurts",
		"pain",
		"headache",
		"symptoms",
		"anxious",
		"nervous",
		"trouble sleeping",
		"can't sleep",
		"since yesterday",
		"since last",
		"help me",
	}
}
