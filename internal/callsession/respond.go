package callsession

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/voxbridge/voxbridge/pkg/provider/llm"
)

// DefaultSystemPrompt is the agent persona seeded into every conversation.
// Responses are constrained to short plain sentences because everything the
// model says goes straight to a speech synthesizer.
const DefaultSystemPrompt = `You are a professional debt collection agent. Follow these rules:
1. Keep responses short and clear - maximum 2-3 sentences
2. Use simple, conversational language
3. Avoid special characters, emojis, or formatting
4. Focus on one topic at a time
5. Be polite and professional
6. Use numbers instead of words for amounts
7. Avoid abbreviations
8. Use natural pauses and rhythm in speech
9. Show empathy while maintaining professionalism
10. Use active voice for clarity`

// respond appends the caller's words to the conversation, asks the model for
// a reply, and appends the sanitized reply on success.
//
// The user turn is recorded before the completion call so a model failure
// still leaves the caller's words in the history for the next turn. The
// assistant turn is recorded only when the model actually produced one.
func (s *Session) respond(ctx context.Context, userText string) (string, bool) {
	s.cfg.Convo.Append(s.cfg.CallID, llm.RoleUser, userText)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	start := time.Now()
	resp, err := s.cfg.LLM.Complete(ctx, llm.CompletionRequest{
		Messages:    s.cfg.Convo.History(s.cfg.CallID),
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		s.logger.Warn("response generation failed", "error", err)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.RecordProviderError(ctx, "groq", "llm")
		}
		return "", false
	}

	reply := SanitizeReply(resp.Content)
	if reply == "" {
		return "", false
	}

	s.cfg.Convo.Append(s.cfg.CallID, llm.RoleAssistant, reply)
	s.logger.Debug("generated reply", "reply", reply, "tokens", resp.Usage.TotalTokens)
	return reply, true
}

// replacements maps typography the synthesizer mispronounces to plain
// equivalents.
var replacements = strings.NewReplacer(
	`"`, "",
	"“", "", // left smart quote
	"”", "", // right smart quote
	"...", ".",
	"…", ".", // horizontal ellipsis
	"–", "-", // en dash
	"—", "-", // em dash
)

// SanitizeReply normalises model output for speech synthesis: quotes are
// stripped, ellipses become periods, dashes become hyphens, and any
// remaining non-printable or non-ASCII runes are dropped.
func SanitizeReply(text string) string {
	text = replacements.Replace(strings.TrimSpace(text))

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r < unicode.MaxASCII && unicode.IsPrint(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
