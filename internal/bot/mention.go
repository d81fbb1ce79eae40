// Package bot decides whether an event's text addresses the bot and
// derives the command to act on.
package bot

import (
	"strings"
)

// Command is the closed result of mention extraction. Text and Sender
// are meaningful only when ShouldProcess is true; a skipped event
// carries no command.
type Command struct {
	ShouldProcess bool
	Text          string
	Sender        string
}

// Extract scans text for a mention of botName and returns the command
// to dispatch. It returns a non-processing Command when text is empty,
// when no mention is present, or when sender is the bot itself (its
// handle or the "[bot]"-suffixed app login), matched
// case-insensitively. The command text is the full original text with
// casing preserved; Extract never panics for any input.
func Extract(text, sender, botName string) Command {
	if text == "" || botName == "" {
		return Command{}
	}

	lowSender := strings.ToLower(sender)
	lowBot := strings.ToLower(botName)
	if lowSender == lowBot || lowSender == lowBot+"[bot]" {
		return Command{}
	}

	if !containsMention(strings.ToLower(text), lowBot) {
		return Command{}
	}

	return Command{ShouldProcess: true, Text: text, Sender: sender}
}

// containsMention reports whether lowText contains "@"+lowBot followed
// by a non-handle character, so a mention of "bot" does not fire
// inside "@bot2" or "@bot-two".
func containsMention(lowText, lowBot string) bool {
	token := "@" + lowBot
	for offset := 0; ; {
		idx := strings.Index(lowText[offset:], token)
		if idx < 0 {
			return false
		}
		end := offset + idx + len(token)
		if end >= len(lowText) || !isHandleChar(lowText[end]) {
			return true
		}
		offset = end
	}
}

// GitHub handles are alphanumeric plus hyphen.
func isHandleChar(c byte) bool {
	return c == '-' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}
