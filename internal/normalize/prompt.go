package normalize

import (
	"strings"

	"github.com/dgallion1/coursemd/internal/llm"
)

const TablePrompt = `You are reformatting a region of a plain-text teaching document that was marked as a table.

The region may hold tabular data laid out vertically (one cell per line), with irregular spacing, or with broken column alignment. Rebuild it as a Markdown pipe table:

- One row per line, cells separated by " | ", each row starting and ending with "|"
- The first row is the header row, followed by a separator row such as "| --- | --- |"
- Keep every cell value exactly as written; do not translate, summarize, or invent values
- Leave genuinely non-tabular bulleted content exactly as it is
- If the region contains no table at all, return it unmodified

Respond with ONLY the transformed text. No commentary, no explanations, no code fences.`

// BuildTablePrompt combines the fixed instruction with one table chunk.
func BuildTablePrompt(chunkText string) string {
	var sb strings.Builder
	sb.Grow(len(TablePrompt) + len(chunkText) + len(llm.PromptSeparator))
	sb.WriteString(TablePrompt)
	sb.WriteString(llm.PromptSeparator)
	sb.WriteString(chunkText)
	return sb.String()
}
