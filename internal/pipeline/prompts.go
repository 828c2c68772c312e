package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tributary-ai/postgen/internal/types"
)

// PromptBuilder turns a raw prompt and its classification into model input
type PromptBuilder interface {
	Build(prompt string, classification *types.ClassificationResult, user *types.UserContext) string
}

// TemplateBuilder is the default PromptBuilder
type TemplateBuilder struct{}

var storyGuidance = map[types.StoryType]string{
	types.StoryJourney:     "Tell it as a story with a clear before and after. Name the turning point.",
	types.StoryTechnical:   "Explain the problem, the approach and the result in plain words. Keep jargon light.",
	types.StoryAchievement: "Lead with the result, then credit the people who made it happen.",
	types.StoryLearning:    "Open with the lesson, then the situation that taught it. Make it useful to the reader.",
	types.StoryGeneral:     "Share a clear point of view and back it with one concrete example.",
}

// Build renders the generation prompt
func (TemplateBuilder) Build(prompt string, c *types.ClassificationResult, user *types.UserContext) string {
	story := types.StoryGeneral
	if c != nil && c.StoryType.Valid() {
		story = c.StoryType
	}

	var b strings.Builder
	b.WriteString("Write a LinkedIn post in the first person.\n\n")

	fmt.Fprintf(&b, "Story type: %s\n", story)
	if c != nil {
		if c.Tone != "" {
			fmt.Fprintf(&b, "Tone: %s\n", c.Tone)
		}
		if c.Audience != "" {
			fmt.Fprintf(&b, "Audience: %s\n", c.Audience)
		}
		if len(c.Keywords) > 0 {
			fmt.Fprintf(&b, "Key themes: %s\n", strings.Join(c.Keywords, ", "))
		}
	}

	if about := describeUser(user); about != "" {
		fmt.Fprintf(&b, "\nAbout the author:\n%s", about)
	}

	b.WriteString("\nGuidelines:\n")
	fmt.Fprintf(&b, "- %s\n", storyGuidance[story])
	b.WriteString("- Use short paragraphs separated by blank lines.\n")
	b.WriteString("- Plain text only. No markdown, bold text or headings.\n")
	b.WriteString("- End with one question that invites comments.\n")
	b.WriteString("- Put 3 to 5 relevant hashtags on the last line.\n")
	b.WriteString("- Aim for 800 to 2000 characters.\n")

	fmt.Fprintf(&b, "\nPost idea:\n%s\n", strings.TrimSpace(prompt))
	return b.String()
}

func describeUser(user *types.UserContext) string {
	if user == nil {
		return ""
	}
	var lines []string
	who := strings.TrimSpace(strings.Join(nonEmpty(user.Name, user.Role), ", "))
	if user.Company != "" {
		who = strings.TrimSpace(who + " at " + user.Company)
	}
	if who != "" {
		lines = append(lines, "- "+who)
	}
	if user.Industry != "" {
		lines = append(lines, "- Industry: "+user.Industry)
	}
	if user.Audience != "" {
		lines = append(lines, "- Writes for: "+user.Audience)
	}
	if user.Tone != "" {
		lines = append(lines, "- Preferred tone: "+user.Tone)
	}
	if len(user.Goals) > 0 {
		lines = append(lines, "- Goals: "+strings.Join(user.Goals, "; "))
	}
	keys := make([]string, 0, len(user.Preferences))
	for k := range user.Preferences {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("- %s: %s", k, user.Preferences[k]))
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func nonEmpty(values ...string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

const systemInstruction = "You are a ghostwriter for professionals. You write authentic, specific social posts " +
	"that sound like the author. Return only the post text."

const imageAnalysisTemplate = `Describe this image for someone writing a professional social post about:
%s

Cover the subject, the setting, any visible text and the mood. Use under 120 words of plain text.`

func imageAnalysisPrompt(prompt string) string {
	return fmt.Sprintf(imageAnalysisTemplate, strings.TrimSpace(prompt))
}

func withImageAnalysis(built, analysis string) string {
	return built + "\nThe post accompanies an image. Refer to what it shows:\n" + strings.TrimSpace(analysis) + "\n"
}

func withSources(built, sourceContext string) string {
	if sourceContext == "" {
		return built
	}
	return built + "\nDraw on these sources and mention them naturally, without links in the body:\n" +
		sourceContext + "\n"
}

const fallbackNote = "Our writing models are unavailable right now, so this is your idea as you wrote it. " +
	"Try generating again in a few minutes."

// fallbackTemplate embeds the raw prompt verbatim
func fallbackTemplate(prompt string) string {
	return prompt + "\n\n" + fallbackNote
}
