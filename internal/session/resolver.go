// Package session resolves a stored opaque session identifier to the
// 1-based numeric index a stateful agent runtime expects for resume
// operations. Resuming by index instead of "most recent" is what keeps
// concurrent changes from stomping on each other's reviewer context.
package session

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// Lister fetches the raw session listing text from the agent runtime.
type Lister interface {
	List(ctx context.Context) (string, error)
}

// entryRe matches one listing entry: a 1-based position, a dot or paren,
// then the session identifier as the first token.
var entryRe = regexp.MustCompile(`^\s*(\d+)[.)]\s+(\S+)`)

// headerRe matches the listing header line.
var headerRe = regexp.MustCompile(`(?i)^\s*(sessions|index\s+session)\b`)

// Resolve scans a session listing for sessionID and returns the 1-based
// resume index that entry declares. The listing must carry a recognizable
// header and at least one entry line; anything else is ErrUnparsableOutput.
// A well-formed listing without the identifier yields a NotFoundError.
func Resolve(listing, sessionID string) (int, error) {
	if strings.TrimSpace(sessionID) == "" {
		return 0, errors.New("session id is empty")
	}

	sawHeader := false
	entries := 0
	for _, line := range strings.Split(listing, "\n") {
		if !sawHeader {
			if headerRe.MatchString(line) {
				sawHeader = true
			}
			continue
		}
		m := entryRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		entries++
		if m[2] != sessionID {
			continue
		}
		index, err := strconv.Atoi(m[1])
		if err != nil || index < 1 {
			return 0, ErrUnparsableOutput
		}
		return index, nil
	}

	if !sawHeader || entries == 0 {
		return 0, ErrUnparsableOutput
	}
	return 0, &NotFoundError{SessionID: sessionID, Entries: entries}
}

// Resolver combines a Lister with the listing parser.
type Resolver struct {
	Lister Lister
}

// Resolve fetches the listing and resolves sessionID to its resume index.
// All failure modes (command failure, unparsable output, identifier not
// found) are fatal to the caller's cycle.
func (r *Resolver) Resolve(ctx context.Context, sessionID string) (int, error) {
	listing, err := r.Lister.List(ctx)
	if err != nil {
		return 0, err
	}
	return Resolve(listing, sessionID)
}

// CommandLister shells out to the configured session-list command and
// returns its stdout verbatim.
type CommandLister struct {
	// Command is the executable name, e.g. the agent runtime CLI.
	Command string
	// Args are the subcommand arguments, e.g. ["sessions", "list"].
	Args []string
	// Dir is the project root the command runs in. Session listings are
	// scoped to a directory by the runtime, so this is always explicit,
	// never inherited from ambient process state.
	Dir string
}

// List runs the configured command and returns its stdout. Failures are
// wrapped in a CommandError carrying exit status and captured stderr.
func (c *CommandLister) List(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, c.Command, c.Args...)
	cmd.Dir = c.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return "", &CommandError{
			Command:  c.Command,
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
	}
	return stdout.String(), nil
}
