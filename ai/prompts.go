package ai

import (
	"fmt"
	"strings"
)

// ScoredTheme pairs a vocabulary theme with its similarity to the query
// image.
type ScoredTheme struct {
	Name  string
	Score float64
}

// buildThemePrompt embeds the vision description, user hints, and pre-ranked
// candidate themes into the generation prompt. The model is asked for a bare
// JSON string array so the response can be parsed without scaffolding.
func buildThemePrompt(description string, hints []string, candidates []ScoredTheme) string {
	hintText := "なし"
	if len(hints) > 0 {
		hintText = strings.Join(hints, ", ")
	}

	var candidateLines strings.Builder
	for _, candidate := range candidates {
		fmt.Fprintf(&candidateLines, "- %s (score=%.3f)\n", candidate.Name, candidate.Score)
	}

	var b strings.Builder
	b.WriteString("あなたは遊びのイベントプランナーです。以下の画像説明と候補テーマをもとに、")
	b.WriteString("日本語で 3~5 件のテーマ候補を JSON 配列形式（文字列のみ）で出力してください。\n")
	fmt.Fprintf(&b, "画像説明: %s\n", description)
	fmt.Fprintf(&b, "ユーザーヒント: %s\n", hintText)
	fmt.Fprintf(&b, "候補テーマ:\n%s", candidateLines.String())
	b.WriteString("出力例: [\"カフェで近況会\", \"ボードゲームナイト\"]")
	return b.String()
}

// buildProposalPrompt embeds the description, audience hints, and context
// notes and pins the exact JSON object shape the draft must follow.
func buildProposalPrompt(description string, audienceHints []int32, contextNotes []string) string {
	audienceText := "なし"
	if len(audienceHints) > 0 {
		ids := make([]string, 0, len(audienceHints))
		for _, id := range audienceHints {
			ids = append(ids, fmt.Sprintf("%d", id))
		}
		audienceText = strings.Join(ids, ", ")
	}

	notesText := "なし"
	if len(contextNotes) > 0 {
		var lines strings.Builder
		for i, note := range contextNotes {
			if i > 0 {
				lines.WriteString("\n")
			}
			fmt.Fprintf(&lines, "- %s", note)
		}
		notesText = lines.String()
	}

	var b strings.Builder
	b.WriteString("あなたは友人同士の再会をアシストする提案オーガナイザーです。")
	b.WriteString("以下の画像説明と補足情報を踏まえ、JSON でドラフト提案を生成してください。")
	b.WriteString("出力は {\"title\": str, \"body\": str, \"audience\": [int], \"slots\": [{\"start\": ISO8601, \"end\": ISO8601}]} の形式にしてください。\n")
	fmt.Fprintf(&b, "画像説明: %s\n", description)
	fmt.Fprintf(&b, "宛先ヒント: %s\n", audienceText)
	fmt.Fprintf(&b, "補足メモ:\n%s\n", notesText)
	b.WriteString("出力では、本文は 2 文まで、候補日時は 0~2 件までで構いません。")
	return b.String()
}
