package podcast

import (
	"fmt"
	"strings"
)

// personaBlock fixes the hosts' voices and the rules of the conversation.
const personaBlock = `
## Hosts

### Jane, the explainer
- Talks like a well-read friend over coffee: relaxed, a little casual, never like a textbook.
- Works top-down: opens with an everyday situation, then builds the framework behind it.
- Intellectually honest. Says "I think..." or "that part is still uncertain" when it is.
- Re-explains with a different analogy when Joe looks lost.
- Names sources the way people do in conversation ("there's a NASA report that says..."), never as formal citations.

### Joe, the questioner
- Thinks bottom-up through examples and personal experience; he stands in for the listener.
- Keeps things concrete. When Jane drifts into abstraction he resets with a joke or a blunt question.
- When something clicks he restates it in his own short, energetic words.

## Conversation rules
- Open with a relatable "have you ever noticed...?" moment before the core theme.
- Keep each turn short: at most three or four sentences.
- Joe MUST interrupt whenever Jane runs long or gets academic, roughly every few turns.
- Every technical term gets a plain-language explanation the first time it appears.
- Never mention being an AI, a model or a script.
`

// japaneseReadingBlock asks for a reading after every kanji so speech synthesis
// does not misread it.
const japaneseReadingBlock = `
【必須】読み間違いを防ぐため、台本中のすべての漢字の直後に（）で読みがなを付けてください。
例：台本（だいほん）、信頼（しんらい）、報告書（ほうこくしょ）。
- Jane（ジェーン）は丁寧（ていねい）すぎない、少（すこ）しくだけた雑談（ざつだん）口調（くちょう）で話（はな）します。
- 文末（ぶんまつ）は「〜だよね」「〜かな」など親（した）しみやすい言（い）い方（かた）にしてください。
- いきなり本題（ほんだい）に入（はい）らず、身近（みぢか）な話題（わだい）から始（はじ）めてください。
`

// OutlinePrompt asks for an n-point outline as a JSON array of strings. The
// six-phase arc is the template; other counts merge or split its phases.
func OutlinePrompt(topic string, n int, lang Language) string {
	return fmt.Sprintf(`You are a podcast strategist. For %q, create a %d-point deep-dive outline in %s.
Plan a relatable hook for the opening.
Follow this arc, merging or splitting phases so the outline has exactly %d points:
1. Relatable Hook (an everyday scenario connected to %s)
2. The Core Question (why this matters now)
3. The Foundation (the key frameworks, described simply)
4. The Tension (where theory meets reality)
5. The Integration (Joe's "aha" moment)
6. The Wrap-up (a casual takeaway)
Format the answer as a JSON array of exactly %d strings.`, topic, n, lang.Label(), n, topic, n)
}

// ExtendOutlinePrompt asks for n further points that do not repeat the current outline.
func ExtendOutlinePrompt(topic string, current []string, n int, lang Language) string {
	return fmt.Sprintf(`You are a podcast strategist. For %q, the outline so far is:
%s
Add %d more conversational points that go deeper without repeating any of the above, keeping the relaxed coffee-chat feel.
Language: %s. Format the answer as a JSON array of strings.`, topic, bulletList(current), n, lang.Label())
}

// FullScriptPrompt asks for the complete two-host transcript covering every outline point.
func FullScriptPrompt(topic string, outline []string, lang Language) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Expert podcast producer. Topic: %q. Language: %s.\n", topic, lang.Label())
	fmt.Fprintf(&b, "Full outline (cover every point, in order):\n%s\n", bulletList(outline))
	b.WriteString("Write a COMPLETE script that opens with a relatable everyday story and turns into a shared journey of understanding.\n")
	b.WriteString(personaBlock)
	if lang == LanguageJapanese {
		b.WriteString(japaneseReadingBlock)
	}
	fmt.Fprintf(&b, "\nJSON output: { \"transcript\": [{ \"speaker\": %q|%q, \"text\": \"...\" }] }", SpeakerJoe, SpeakerJane)
	return b.String()
}

// GenreTopicsPrompt asks for n concrete episode topics inside a genre.
func GenreTopicsPrompt(genre string, n int, lang Language) string {
	return fmt.Sprintf(`You are a podcast editor. Suggest %d specific, curiosity-provoking episode topics in the genre %q.
Each topic is one short phrase in %s that a listener would want to explore in depth.
Format the answer as a JSON array of strings.`, n, genre, lang.Label())
}

// SpeechPrompt renders a segment of turns for multi-speaker synthesis.
func SpeechPrompt(turns []Turn) string {
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = fmt.Sprintf("%s: %s", t.Speaker, t.Text)
	}
	return "TTS conversation:\n" + strings.Join(lines, "\n")
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "- (none)"
	}
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = fmt.Sprintf("%d. %s", i+1, it)
	}
	return strings.Join(lines, "\n")
}
