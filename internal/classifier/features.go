package classifier

import (
	"math"
	"sort"
	"strings"
)

// Features is the shared lexical bundle every strategy scores against
type Features struct {
	Normalized    string
	Words         []string
	WordCount     int
	SentenceCount int

	Temporal []string
	LongSpan bool

	Emotions           map[string]float64
	Celebration        float64
	Vulnerability      float64
	EmotionalIntensity float64

	TechnicalDepth     float64
	TechnicalTerms     []string
	AchievementSignals []string
	AchievementScore   float64
	LearningSignals    []string
	LearningScore      float64
	JourneySignals     []string
	JourneyScore       float64
	GeneralSignals     []string
	GeneralScore       float64

	Intents       map[string]float64
	PrimaryIntent string

	Complexity   float64
	FirstPerson  float64
	PastTense    float64
	Questions    int
	Exclamations int
	Numbers      int

	Language string
	Keywords []string
}

// Scores flattens the bundle for result metadata
func (f *Features) Scores() map[string]float64 {
	temporal := 0.0
	if len(f.Temporal) > 0 {
		temporal = 1.0
	}
	return map[string]float64{
		"achievement":         round2(f.AchievementScore),
		"learning":            round2(f.LearningScore),
		"journey":             round2(f.JourneyScore),
		"general":             round2(f.GeneralScore),
		"technical_depth":     round2(f.TechnicalDepth),
		"celebration":         round2(f.Celebration),
		"vulnerability":       round2(f.Vulnerability),
		"emotional_intensity": round2(f.EmotionalIntensity),
		"complexity":          round2(f.Complexity),
		"temporal":            temporal,
		"first_person":        round2(f.FirstPerson),
		"past_tense":          round2(f.PastTense),
	}
}

var firstPersonWords = map[string]bool{
	"i": true, "me": true, "my": true, "mine": true, "we": true, "our": true, "us": true,
	"i'm": true, "i've": true, "i'd": true, "we're": true, "we've": true,
}

var irregularPast = map[string]bool{
	"won": true, "built": true, "grew": true, "began": true, "took": true, "led": true,
	"made": true, "wrote": true, "taught": true, "went": true, "left": true, "got": true,
	"became": true, "found": true, "spent": true, "felt": true, "thought": true, "ran": true,
	"learnt": true, "broke": true, "saw": true, "knew": true, "came": true, "gave": true,
}

// Extractor builds feature bundles. The lexical tables are package-level and
// never mutated, so one extractor can be shared across goroutines.
type Extractor struct {
	detector *languageDetector
}

// NewExtractor returns an extractor. A nil detector disables language detection.
func NewExtractor(detector *languageDetector) *Extractor {
	return &Extractor{detector: detector}
}

// Extract scores a prompt against every table
func (e *Extractor) Extract(prompt string) *Features {
	text := strings.ReplaceAll(prompt, "’", "'")
	lower := strings.ToLower(text)

	words := wordPattern.FindAllString(lower, -1)
	normalized := strings.Join(words, " ")
	padded := " " + normalized + " "
	wordSet := make(map[string]bool, len(words))
	for _, w := range words {
		wordSet[w] = true
	}

	f := &Features{
		Normalized:   normalized,
		Words:        words,
		WordCount:    len(words),
		Questions:    strings.Count(text, "?"),
		Exclamations: strings.Count(text, "!"),
		Numbers:      len(numberPattern.FindAllString(lower, -1)),
		Emotions:     make(map[string]float64, len(emotionTables)),
		Intents:      make(map[string]float64, len(intentTables)),
	}

	for _, s := range sentenceSplit.Split(strings.TrimSpace(text), -1) {
		if strings.TrimSpace(s) != "" {
			f.SentenceCount++
		}
	}

	for _, p := range temporalPatterns {
		f.Temporal = append(f.Temporal, p.FindAllString(normalized, -1)...)
	}
	f.LongSpan = agoPattern.MatchString(normalized) ||
		sincePattern.MatchString(normalized) ||
		backThenPattern.MatchString(normalized) ||
		(len(f.Temporal) > 0 && longSpanPattern.MatchString(strings.Join(f.Temporal, " ")))

	f.AchievementSignals, f.AchievementScore = matchTable(padded, wordSet, achievementTerms)
	f.LearningSignals, f.LearningScore = matchTable(padded, wordSet, learningTerms)
	f.JourneySignals, f.JourneyScore = matchTable(padded, wordSet, journeyTerms)
	f.GeneralSignals, f.GeneralScore = matchTable(padded, wordSet, generalTerms)

	var techScore float64
	f.TechnicalTerms, techScore = matchTable(padded, wordSet, technicalTerms)
	f.TechnicalDepth = math.Min(1, techScore/3)

	total := 0.0
	for _, emotion := range sortedKeys(emotionTables) {
		_, score := matchTable(padded, wordSet, emotionTables[emotion])
		f.Emotions[emotion] = math.Min(1, score)
		total += score
	}
	for _, emotion := range celebrationEmotions {
		f.Celebration += f.Emotions[emotion]
	}
	f.Celebration = math.Min(1, f.Celebration)
	f.Vulnerability = math.Min(1, f.Emotions["vulnerability"]+0.5*f.Emotions["frustration"])
	f.EmotionalIntensity = math.Min(1, total/2+math.Min(0.3, 0.1*float64(f.Exclamations)))

	best := 0.0
	for _, intent := range sortedKeys(intentTables) {
		_, score := matchTable(padded, wordSet, intentTables[intent])
		if intent == "ask" && f.Questions > 0 {
			score += 0.5
		}
		score = math.Min(1, score)
		f.Intents[intent] = score
		if score > best {
			best = score
			f.PrimaryIntent = intent
		}
	}

	f.Complexity = complexity(words, f.SentenceCount)

	if f.WordCount > 0 {
		first, past := 0, 0
		for _, w := range words {
			if firstPersonWords[w] {
				first++
			}
			if irregularPast[w] || pastTenseWords.MatchString(w) {
				past++
			}
		}
		f.FirstPerson = float64(first) / float64(f.WordCount)
		f.PastTense = float64(past) / float64(f.WordCount)
	}

	f.Keywords = keywords(words, 8)

	if e.detector != nil {
		f.Language = e.detector.Detect(text)
	}

	return f
}

// matchTable returns matched terms in sorted order and their summed weight
func matchTable(padded string, words map[string]bool, table termTable) ([]string, float64) {
	var matched []string
	for term := range table {
		if strings.ContainsAny(term, " ") {
			if strings.Contains(padded, " "+term+" ") {
				matched = append(matched, term)
			}
		} else if words[term] {
			matched = append(matched, term)
		}
	}
	sort.Strings(matched)

	score := 0.0
	for _, term := range matched {
		score += table[term]
	}
	return matched, score
}

// complexity blends average word length, sentence length and lexical diversity
func complexity(words []string, sentences int) float64 {
	if len(words) == 0 {
		return 0
	}
	if sentences == 0 {
		sentences = 1
	}

	chars := 0
	unique := make(map[string]bool, len(words))
	for _, w := range words {
		chars += len([]rune(w))
		unique[w] = true
	}

	avgWord := float64(chars) / float64(len(words))
	avgSentence := float64(len(words)) / float64(sentences)
	diversity := float64(len(unique)) / float64(len(words))

	score := 0.4*math.Min(1, avgWord/8) + 0.4*math.Min(1, avgSentence/25) + 0.2*diversity
	return math.Min(1, score)
}

// keywords ranks non-stopwords by frequency, ties by first appearance
func keywords(words []string, limit int) []string {
	counts := make(map[string]int)
	first := make(map[string]int)
	for i, w := range words {
		if len(w) < 3 || stopWords[w] || isNumeric(w) {
			continue
		}
		if _, seen := counts[w]; !seen {
			first[w] = i
		}
		counts[w]++
	}

	out := make([]string, 0, len(counts))
	for w := range counts {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return first[out[i]] < first[out[j]]
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func isNumeric(w string) bool {
	for _, r := range w {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
