package anthropic

import (
	"fmt"
	"strings"

	"github.com/DukeRupert/streamtosite/internal/ai"
)

// buildDraftPrompt creates the instruction for writing a blog post draft
// for a creator's site.
func buildDraftPrompt(params ai.DraftParams) string {
	var b strings.Builder

	b.WriteString(`You are a ghostwriter for a video creator. Their videos are turned into a blog on their own website, and you write the blog posts.

Write one blog post draft. It should read as if the creator wrote it: first person, specific, no filler. Use Markdown for the body with short sections and headings where they help. Do not invent facts about the video you were not given; keep claims general where you are unsure.`)

	b.WriteString("\n\n**Creator:**\n")
	fmt.Fprintf(&b, "- Channel: %s\n", fallback(params.ChannelName, "unknown"))
	if params.Category != "" {
		fmt.Fprintf(&b, "- Category: %s\n", params.Category)
	}
	if len(params.Tags) > 0 {
		fmt.Fprintf(&b, "- Keywords: %s\n", strings.Join(params.Tags, ", "))
	}

	b.WriteString("\n**Post:**\n")
	if params.Topic != "" {
		fmt.Fprintf(&b, "- Topic: %s\n", params.Topic)
	}
	if params.VideoURL != "" {
		fmt.Fprintf(&b, "- Source video: %s\n", params.VideoURL)
	}
	fmt.Fprintf(&b, "- Tone: %s\n", fallback(string(params.Tone), string(ai.ToneCasual)))

	b.WriteString(`
**Response Format:**
Return the draft as a JSON object with this exact structure:

{
  "title": "Post title, under 70 characters",
  "excerpt": "One or two sentence summary for listings",
  "content": "The full post body in Markdown"
}

**Important:** Return ONLY the JSON object, no additional text or explanation.`)

	return b.String()
}

func fallback(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
