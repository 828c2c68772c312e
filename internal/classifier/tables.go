package classifier

import (
	"regexp"

	"github.com/tributary-ai/postgen/internal/types"
)

// termTable maps a word or phrase to its signal weight. Phrases match on word
// boundaries after normalization.
type termTable map[string]float64

var achievementTerms = termTable{
	"shipped": 1.0, "launched": 1.0, "launch": 0.7, "released": 0.8, "release": 0.6,
	"won": 0.9, "award": 0.9, "awarded": 0.9, "promoted": 0.9, "promotion": 0.8,
	"milestone": 0.9, "achieved": 0.9, "achievement": 0.8, "accomplished": 0.9,
	"completed": 0.7, "finished": 0.6, "reached": 0.6, "raised": 0.6, "funding": 0.6,
	"certified": 0.8, "certification": 0.8, "graduated": 0.8, "delivered": 0.7,
	"hired": 0.6, "new role": 0.7, "excited to announce": 1.0, "thrilled to announce": 1.0,
	"happy to announce": 1.0, "major": 0.3, "record": 0.5, "success": 0.6,
	"successfully": 0.6, "closed": 0.4, "signed": 0.5, "grew": 0.3, "doubled": 0.7,
}

var learningTerms = termTable{
	"learned": 1.0, "learnt": 1.0, "learning": 0.6, "lesson": 1.0, "lessons": 1.0,
	"mistake": 0.8, "mistakes": 0.8, "realized": 0.8, "discovered": 0.6, "insight": 0.7,
	"insights": 0.7, "takeaway": 0.9, "takeaways": 0.9, "taught me": 1.0, "figured out": 0.6,
	"understand": 0.4, "understanding": 0.4, "growth mindset": 0.8, "failure": 0.7,
	"failed": 0.6, "reflect": 0.6, "reflection": 0.6, "what i wish": 0.8, "advice": 0.6,
	"tips": 0.5, "course": 0.4, "studying": 0.6, "mentor": 0.5, "feedback": 0.5,
}

var technicalTerms = termTable{
	"api": 0.8, "apis": 0.8, "architecture": 0.9, "database": 0.8, "kubernetes": 0.9,
	"docker": 0.8, "microservices": 0.9, "latency": 0.8, "algorithm": 0.9, "code": 0.6,
	"codebase": 0.7, "deploy": 0.7, "deployed": 0.7, "deployment": 0.7, "refactor": 0.8,
	"refactored": 0.8, "migration": 0.7, "migrated": 0.7, "scalability": 0.8,
	"infrastructure": 0.8, "backend": 0.7, "frontend": 0.7, "python": 0.7, "golang": 0.8,
	"javascript": 0.7, "typescript": 0.7, "react": 0.6, "aws": 0.7, "cloud": 0.5,
	"machine learning": 0.8, "llm": 0.7, "pipeline": 0.5, "framework": 0.5, "bug": 0.6,
	"debugging": 0.7, "built": 0.5, "system": 0.4, "open source": 0.7, "github": 0.6,
	"sql": 0.8, "query": 0.5, "cache": 0.6, "caching": 0.6, "server": 0.5, "engineering": 0.5,
	"software": 0.5, "throughput": 0.8, "benchmark": 0.7, "compiler": 0.9, "cli": 0.6,
}

var journeyTerms = termTable{
	"journey": 1.0, "years ago": 0.9, "started": 0.5, "when i started": 0.9, "career": 0.6,
	"path": 0.5, "transition": 0.8, "first job": 0.8, "looking back": 0.9, "back then": 0.8,
	"chapter": 0.6, "new chapter": 0.8, "decade": 0.7, "evolved": 0.6, "long way": 0.7,
	"came a long way": 0.9, "never thought": 0.7, "self taught": 0.8, "bootcamp": 0.7,
	"career change": 1.0, "pivot": 0.7, "quit": 0.6, "left my job": 0.8, "i used to": 0.8,
	"today i": 0.3, "grew up": 0.7,
}

var generalTerms = termTable{
	"thoughts": 0.5, "opinion": 0.5, "news": 0.5, "industry": 0.4, "trend": 0.5,
	"trends": 0.5, "update": 0.4, "event": 0.4, "conference": 0.5, "webinar": 0.5,
	"article": 0.5, "reading": 0.4, "podcast": 0.5, "hiring": 0.5, "team": 0.2,
	"future": 0.4, "remote": 0.4,
}

// emotionTables groups markers by emotion
var emotionTables = map[string]termTable{
	"pride": {
		"proud": 1.0, "pride": 0.9, "honored": 0.9, "humbled": 0.8,
	},
	"excitement": {
		"excited": 1.0, "thrilled": 1.0, "can't wait": 0.8, "amazing": 0.6, "incredible": 0.6,
		"pumped": 0.8,
	},
	"gratitude": {
		"grateful": 1.0, "thankful": 1.0, "thanks": 0.6, "thank you": 0.8, "appreciate": 0.7,
		"shout out": 0.7, "shoutout": 0.7,
	},
	"vulnerability": {
		"scared": 0.8, "afraid": 0.8, "struggled": 0.9, "struggle": 0.8, "doubt": 0.7,
		"anxious": 0.7, "imposter": 0.8, "difficult": 0.5, "hard": 0.3, "vulnerable": 0.9,
	},
	"frustration": {
		"frustrated": 0.9, "frustrating": 0.9, "annoying": 0.7, "painful": 0.7,
		"burned out": 0.9, "burnout": 0.9,
	},
	"joy": {
		"happy": 0.8, "joy": 0.9, "love": 0.6, "fun": 0.5, "delighted": 0.9,
	},
}

// celebrationEmotions are the emotions that read as celebration
var celebrationEmotions = []string{"pride", "excitement", "gratitude", "joy"}

// intentTables map intent names to trigger phrases
var intentTables = map[string]termTable{
	"celebrate": {
		"so proud": 1.0, "proud of": 0.8, "excited to announce": 1.0, "thrilled": 0.8,
		"happy to share": 0.8, "celebrate": 1.0, "celebrating": 1.0, "milestone": 0.6,
	},
	"teach": {
		"how to": 1.0, "tips": 0.8, "here's how": 1.0, "step by step": 0.9, "guide": 0.7,
		"lessons": 0.8, "what i learned": 1.0, "advice": 0.7, "takeaways": 0.8,
	},
	"reflect": {
		"looking back": 1.0, "reflect": 0.8, "reflecting": 0.9, "realized": 0.6,
		"i used to": 0.8, "years ago": 0.7, "journey": 0.7,
	},
	"explain": {
		"how we": 0.9, "deep dive": 1.0, "under the hood": 1.0, "architecture": 0.5,
		"why we": 0.8, "walkthrough": 0.8, "trade offs": 0.8, "tradeoffs": 0.8,
	},
	"share": {
		"sharing": 0.7, "wanted to share": 0.9, "thoughts on": 0.8, "excited to share": 0.8,
	},
	"ask": {
		"what do you think": 1.0, "curious": 0.6, "would love to hear": 0.9, "anyone else": 0.8,
	},
}

// Temporal expression families
var (
	durationPattern = regexp.MustCompile(`\b(\d+|a|an|one|two|three|four|five|six|seven|eight|nine|ten|twelve|several|few)\s+(day|week|month|year|decade)s?\b`)
	agoPattern      = regexp.MustCompile(`\b(years?|months?|weeks?|decades?)\s+ago\b`)
	lastPattern     = regexp.MustCompile(`\blast\s+(year|month|week|quarter|sprint)\b`)
	sincePattern    = regexp.MustCompile(`\bsince\s+(\d{4}|last|the|i|we)\b`)
	yearPattern     = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	backThenPattern = regexp.MustCompile(`\bback\s+(then|in\s+\d{4})\b`)
	fromToPattern   = regexp.MustCompile(`\bfrom\s+(a\s+|an\s+)?\w+(\s+\w+){0,2}\s+to\s+(a\s+|an\s+)?\w+`)
	longSpanPattern = regexp.MustCompile(`\b(year|years|decade|decades)\b`)

	numberPattern  = regexp.MustCompile(`\b\d+(\.\d+)?(%|x|k|m)?\b`)
	wordPattern    = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`)
	sentenceSplit  = regexp.MustCompile(`[.!?]+`)
	pastTenseWords = regexp.MustCompile(`^\w{3,}ed$`)
)

var temporalPatterns = []*regexp.Regexp{
	durationPattern,
	agoPattern,
	lastPattern,
	sincePattern,
	yearPattern,
	backThenPattern,
	fromToPattern,
}

// stopWords are excluded from keyword extraction
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true, "so": true,
	"of": true, "to": true, "in": true, "on": true, "at": true, "for": true, "with": true,
	"after": true, "before": true, "i": true, "we": true, "my": true, "our": true, "me": true,
	"you": true, "your": true, "it": true, "is": true, "was": true, "were": true, "be": true,
	"been": true, "am": true, "are": true, "this": true, "that": true, "these": true,
	"those": true, "from": true, "by": true, "as": true, "about": true, "into": true,
	"just": true, "very": true, "really": true, "have": true, "has": true, "had": true,
	"do": true, "did": true, "not": true, "no": true, "what": true, "how": true, "why": true,
	"when": true, "who": true, "all": true, "some": true, "more": true, "most": true,
	"can": true, "will": true, "would": true, "could": true, "should": true, "its": true,
	"their": true, "they": true, "them": true, "he": true, "she": true, "his": true, "her": true,
	"out": true, "up": true, "than": true, "then": true, "there": true, "here": true,
	"want": true, "write": true, "post": true, "linkedin": true,
}

// calibrationFactors discount categories the ensemble tends to over-score
var calibrationFactors = map[types.StoryType]float64{
	types.StoryJourney:     0.9,
	types.StoryTechnical:   0.92,
	types.StoryAchievement: 0.85,
	types.StoryLearning:    0.9,
	types.StoryGeneral:     0.8,
}
