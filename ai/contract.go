package ai

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

const maxThemeSuggestions = 5

// TimeSlot is a proposed start/end pair in ISO 8601 form.
type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ProposalDraft is the validated structured output of proposal generation.
type ProposalDraft struct {
	Title    string     `json:"title"`
	Body     string     `json:"body"`
	Audience []int32    `json:"audience"`
	Slots    []TimeSlot `json:"slots"`
}

// parseThemeSuggestions parses the generated output as a JSON array of
// strings, capped at five entries. The second return reports whether the
// output was usable; theme suggestion falls back to the pre-ranked
// candidates instead of failing.
func parseThemeSuggestions(response string) ([]string, bool) {
	trimmed := strings.TrimSpace(response)
	// json.Unmarshal accepts "null" into a slice; require an actual array.
	if !strings.HasPrefix(trimmed, "[") {
		return nil, false
	}
	var suggestions []string
	if err := json.Unmarshal([]byte(trimmed), &suggestions); err != nil {
		return nil, false
	}
	if len(suggestions) > maxThemeSuggestions {
		suggestions = suggestions[:maxThemeSuggestions]
	}
	return suggestions, true
}

// parseProposalDraft validates the generated output against the draft
// contract: string title and body, integer audience list, and slot objects
// carrying string start/end. A malformed proposal cannot be safely
// synthesized, so any violation fails the operation.
func parseProposalDraft(response string) (*ProposalDraft, error) {
	decoder := json.NewDecoder(strings.NewReader(response))
	decoder.UseNumber()

	var parsed map[string]any
	if err := decoder.Decode(&parsed); err != nil {
		return nil, errors.Wrapf(ErrModelContract, "response is not a JSON object: %v", err)
	}

	title, err := contractString(parsed, "title")
	if err != nil {
		return nil, err
	}
	body, err := contractString(parsed, "body")
	if err != nil {
		return nil, err
	}

	rawAudience, ok := parsed["audience"]
	if !ok {
		return nil, errors.Wrap(ErrModelContract, "audience is missing")
	}
	audienceList, ok := rawAudience.([]any)
	if !ok {
		return nil, errors.Wrap(ErrModelContract, "audience is not an array")
	}
	audience := make([]int32, 0, len(audienceList))
	for _, item := range audienceList {
		number, ok := item.(json.Number)
		if !ok {
			return nil, errors.Wrap(ErrModelContract, "audience contains a non-integer entry")
		}
		id, err := number.Int64()
		if err != nil {
			return nil, errors.Wrapf(ErrModelContract, "audience entry %s is not an integer", number)
		}
		audience = append(audience, int32(id))
	}

	rawSlots, ok := parsed["slots"]
	if !ok {
		return nil, errors.Wrap(ErrModelContract, "slots is missing")
	}
	slotList, ok := rawSlots.([]any)
	if !ok {
		return nil, errors.Wrap(ErrModelContract, "slots is not an array")
	}
	slots := make([]TimeSlot, 0, len(slotList))
	for _, item := range slotList {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, errors.Wrap(ErrModelContract, "slots entry is not an object")
		}
		start, ok := entry["start"].(string)
		if !ok {
			return nil, errors.Wrap(ErrModelContract, "slots entry lacks a string start")
		}
		end, ok := entry["end"].(string)
		if !ok {
			return nil, errors.Wrap(ErrModelContract, "slots entry lacks a string end")
		}
		slots = append(slots, TimeSlot{Start: start, End: end})
	}

	return &ProposalDraft{
		Title:    strings.TrimSpace(title),
		Body:     strings.TrimSpace(body),
		Audience: audience,
		Slots:    slots,
	}, nil
}

func contractString(parsed map[string]any, key string) (string, error) {
	raw, ok := parsed[key]
	if !ok {
		return "", errors.Wrapf(ErrModelContract, "%s is missing", key)
	}
	value, ok := raw.(string)
	if !ok {
		return "", errors.Wrapf(ErrModelContract, "%s is not a string", key)
	}
	return value, nil
}
