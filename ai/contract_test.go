package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseThemeSuggestions(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []string
		ok       bool
	}{
		{
			"valid array",
			`["カフェで近況会", "ボードゲームナイト"]`,
			[]string{"カフェで近況会", "ボードゲームナイト"},
			true,
		},
		{
			"surrounding whitespace",
			"\n  [\"花見\"]  \n",
			[]string{"花見"},
			true,
		},
		{
			"capped at five",
			`["a", "b", "c", "d", "e", "f", "g"]`,
			[]string{"a", "b", "c", "d", "e"},
			true,
		},
		{"empty array", `[]`, []string{}, true},
		{"not json", "テーマ: 花見", nil, false},
		{"null response", `null`, nil, false},
		{"quoted string", `"花見"`, nil, false},
		{"object instead of array", `{"themes": ["a"]}`, nil, false},
		{"mixed types", `["a", 2]`, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseThemeSuggestions(tt.response)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				require.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseProposalDraft(t *testing.T) {
	draft, err := parseProposalDraft(`{
		"title": "  花見ピクニック  ",
		"body": "久しぶりに集まりましょう。",
		"audience": [1, 2, 3],
		"slots": [{"start": "2026-04-04T11:00:00+09:00", "end": "2026-04-04T14:00:00+09:00"}]
	}`)
	require.NoError(t, err)
	require.Equal(t, "花見ピクニック", draft.Title)
	require.Equal(t, "久しぶりに集まりましょう。", draft.Body)
	require.Equal(t, []int32{1, 2, 3}, draft.Audience)
	require.Len(t, draft.Slots, 1)
	require.Equal(t, "2026-04-04T11:00:00+09:00", draft.Slots[0].Start)
}

func TestParseProposalDraftEmptyCollections(t *testing.T) {
	draft, err := parseProposalDraft(`{"title": "t", "body": "b", "audience": [], "slots": []}`)
	require.NoError(t, err)
	require.Empty(t, draft.Audience)
	require.Empty(t, draft.Slots)
}

func TestParseProposalDraftViolations(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"not json", "提案: 花見"},
		{"array instead of object", `[{"title": "t"}]`},
		{"missing title", `{"body": "b", "audience": [], "slots": []}`},
		{"missing body", `{"title": "t", "audience": [], "slots": []}`},
		{"missing audience", `{"title": "t", "body": "b", "slots": []}`},
		{"missing slots", `{"title": "t", "body": "b", "audience": []}`},
		{"title not a string", `{"title": 1, "body": "b", "audience": [], "slots": []}`},
		{"audience not an array", `{"title": "t", "body": "b", "audience": "everyone", "slots": []}`},
		{"audience with string", `{"title": "t", "body": "b", "audience": ["1"], "slots": []}`},
		{"audience with float", `{"title": "t", "body": "b", "audience": [1.5], "slots": []}`},
		{"slots not an array", `{"title": "t", "body": "b", "audience": [], "slots": {}}`},
		{"slot not an object", `{"title": "t", "body": "b", "audience": [], "slots": ["soon"]}`},
		{"slot missing end", `{"title": "t", "body": "b", "audience": [], "slots": [{"start": "s"}]}`},
		{"slot start not a string", `{"title": "t", "body": "b", "audience": [], "slots": [{"start": 1, "end": "e"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseProposalDraft(tt.response)
			require.ErrorIs(t, err, ErrModelContract)
		})
	}
}
