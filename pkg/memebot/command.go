package memebot

import (
	"strings"
)

// CommandPrefix introduces one command invocation in message text.
const CommandPrefix = "!"

// CommandInvocation carries one parsed inbound command.
type CommandInvocation struct {
	// Name is the lowercased command token without prefix.
	Name string
	// Args stores the remaining whitespace-separated tokens in original case.
	Args []string
	// RawInput is the original message text.
	RawInput string
}

// Arg returns the argument at index, or the empty string when absent.
func (c *CommandInvocation) Arg(index int) string {
	if c == nil || index < 0 || index >= len(c.Args) {
		return ""
	}

	return c.Args[index]
}

// ParseCommand parses message text into a command invocation.
//
// matched is false when text does not look like a command: it must start with
// the command prefix and carry at least one non-empty token. Runs of
// whitespace are collapsed before splitting.
func ParseCommand(text string) (invocation CommandInvocation, matched bool) {
	invocation.RawInput = text

	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, CommandPrefix) || len(trimmed) <= len(CommandPrefix) {
		return invocation, false
	}

	fields := strings.Fields(trimmed[len(CommandPrefix):])
	if len(fields) == 0 {
		return invocation, false
	}

	invocation.Name = strings.ToLower(fields[0])
	if len(fields) > 1 {
		invocation.Args = append([]string(nil), fields[1:]...)
	}

	return invocation, true
}
