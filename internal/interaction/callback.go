package interaction

import (
	"fmt"
	"strings"
)

const callbackPrefix = "p:"

// maxCallbackData is Telegram's limit for inline button payloads.
const maxCallbackData = 64

// EncodeChoice builds the button payload for one option.
// Format: p:promptID:value
func EncodeChoice(promptID, value string) (string, error) {
	data := callbackPrefix + promptID + ":" + value
	if len(data) > maxCallbackData {
		return "", fmt.Errorf("callback data for prompt %s is %d bytes, limit %d", promptID, len(data), maxCallbackData)
	}
	return data, nil
}

// DecodeChoice parses a payload made by EncodeChoice. ok is false for
// payloads that do not belong to a prompt.
func DecodeChoice(data string) (promptID, value string, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(data), callbackPrefix)
	if !found {
		return "", "", false
	}
	promptID, value, found = strings.Cut(rest, ":")
	if !found || promptID == "" {
		return "", "", false
	}
	return promptID, value, true
}
