package repl_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"reefdb/pkg/repl"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// runRepl feeds the given input lines to a REPL and returns everything it wrote.
func runRepl(t *testing.T, r *repl.REPL, input string) string {
	t.Helper()
	out := new(strings.Builder)
	r.Run(uuid.New(), "> ", strings.NewReader(input), out)
	return out.String()
}

func TestRepl(t *testing.T) {
	t.Run("RunsCommand", testRunsCommand)
	t.Run("CommandNotFound", testCommandNotFound)
	t.Run("CommandError", testCommandError)
	t.Run("Help", testHelp)
	t.Run("CombineOverlap", testCombineOverlap)
	t.Run("History", testHistory)
}

func echoRepl() *repl.REPL {
	r := repl.NewRepl()
	r.AddCommand("echo", func(payload string, _ *repl.REPLConfig) (string, error) {
		return strings.TrimPrefix(payload, "echo "), nil
	}, "Echo the payload. usage: echo <text>")
	return r
}

func testRunsCommand(t *testing.T) {
	t.Parallel()
	out := runRepl(t, echoRepl(), "echo hello\n")
	require.Contains(t, out, "hello")
}

func testCommandNotFound(t *testing.T) {
	t.Parallel()
	out := runRepl(t, echoRepl(), "nosuch\n")
	require.Contains(t, out, repl.ErrCommandNotFound.Error())
}

func testCommandError(t *testing.T) {
	t.Parallel()
	r := repl.NewRepl()
	r.AddCommand("fail", func(string, *repl.REPLConfig) (string, error) {
		return "", errors.New("boom")
	}, "Always fails. usage: fail")
	out := runRepl(t, r, "fail\n")
	require.Contains(t, out, repl.ErrorPrependStr+"boom")
}

func testHelp(t *testing.T) {
	t.Parallel()
	out := runRepl(t, echoRepl(), ".help\n")
	require.Contains(t, out, "Echo the payload")
}

func testCombineOverlap(t *testing.T) {
	t.Parallel()
	_, err := repl.CombineRepls([]*repl.REPL{echoRepl(), echoRepl()})
	require.ErrorIs(t, err, repl.ErrOverlappingCommands)
}

// Executed commands land in the history file and come back out of .history,
// most recent last.
func testHistory(t *testing.T) {
	t.Parallel()
	r := echoRepl()
	r.SetHistoryPath(filepath.Join(t.TempDir(), "history"))
	_ = runRepl(t, r, "echo one\necho two\n")
	out := runRepl(t, r, ".history\n")
	require.Contains(t, out, "echo one")
	require.Contains(t, out, "echo two")
	require.Less(t, strings.Index(out, "echo one"), strings.Index(out, "echo two"))
}
