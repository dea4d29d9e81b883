package memebot

import (
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantMatched bool
		wantName    string
		wantArgs    []string
	}{
		{
			name:        "simple command",
			text:        "!duck",
			wantMatched: true,
			wantName:    "duck",
		},
		{
			name:        "command with arguments",
			text:        "!alias add duck quack",
			wantMatched: true,
			wantName:    "alias",
			wantArgs:    []string{"add", "duck", "quack"},
		},
		{
			name:        "uppercase name is normalized",
			text:        "!LIST most",
			wantMatched: true,
			wantName:    "list",
			wantArgs:    []string{"most"},
		},
		{
			name:        "argument case is preserved",
			text:        "!volume DUCK 0.5",
			wantMatched: true,
			wantName:    "volume",
			wantArgs:    []string{"DUCK", "0.5"},
		},
		{
			name:        "whitespace runs collapse",
			text:        "  !vote   duck \t keep ",
			wantMatched: true,
			wantName:    "vote",
			wantArgs:    []string{"duck", "keep"},
		},
		{
			name:        "no prefix",
			text:        "duck",
			wantMatched: false,
		},
		{
			name:        "bare prefix",
			text:        "!",
			wantMatched: false,
		},
		{
			name:        "prefix followed by whitespace only",
			text:        "!   ",
			wantMatched: false,
		},
		{
			name:        "empty text",
			text:        "",
			wantMatched: false,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			invocation, matched := ParseCommand(testCase.text)
			if matched != testCase.wantMatched {
				t.Fatalf("matched = %v, want %v", matched, testCase.wantMatched)
			}
			if !matched {
				return
			}
			if invocation.Name != testCase.wantName {
				t.Fatalf("name = %q, want %q", invocation.Name, testCase.wantName)
			}
			if !reflect.DeepEqual(invocation.Args, testCase.wantArgs) {
				t.Fatalf("args = %v, want %v", invocation.Args, testCase.wantArgs)
			}
			if invocation.RawInput != testCase.text {
				t.Fatalf("raw input = %q, want %q", invocation.RawInput, testCase.text)
			}
		})
	}
}

func TestCommandInvocationArg(t *testing.T) {
	t.Parallel()

	invocation := CommandInvocation{Name: "alias", Args: []string{"add", "duck"}}
	if got := invocation.Arg(0); got != "add" {
		t.Fatalf("arg 0 = %q, want add", got)
	}
	if got := invocation.Arg(2); got != "" {
		t.Fatalf("arg 2 = %q, want empty", got)
	}
	if got := invocation.Arg(-1); got != "" {
		t.Fatalf("arg -1 = %q, want empty", got)
	}

	var nilInvocation *CommandInvocation
	if got := nilInvocation.Arg(0); got != "" {
		t.Fatalf("nil invocation arg = %q, want empty", got)
	}
}
