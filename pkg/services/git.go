package services

import (
	"context"
	"strconv"
	"strings"

	"github.com/getship/shipd/pkg/infrastructure/execx"
)

const unknownRevision = "unknown"

// sourceRevision captures the source checkout's HEAD hash and subject line
// for the audit trail. Failures are tolerated; both values fall back to
// "unknown".
func sourceRevision(ctx context.Context, runner execx.Runner, dir string) (hash, subject string) {
	hash, subject = unknownRevision, unknownRevision
	res, err := runner.Run(ctx, execx.Command{
		Name:    "git",
		Args:    []string{"log", "-1", "--format=%H%n%s"},
		Dir:     dir,
		Timeout: execx.TimeoutShort,
	})
	if err != nil {
		return hash, subject
	}
	lines := strings.SplitN(strings.TrimSpace(res.Stdout), "\n", 2)
	if len(lines) > 0 && lines[0] != "" {
		hash = lines[0]
	}
	if len(lines) > 1 && lines[1] != "" {
		subject = lines[1]
	}
	return hash, subject
}

// commitsAhead counts commits between from and the checkout HEAD. Best-effort:
// returns 0 on any failure.
func commitsAhead(ctx context.Context, runner execx.Runner, dir, from string) int {
	if from == "" || from == unknownRevision {
		return 0
	}
	res, err := runner.Run(ctx, execx.Command{
		Name:    "git",
		Args:    []string{"rev-list", "--count", from + "..HEAD"},
		Dir:     dir,
		Timeout: execx.TimeoutShort,
	})
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(res.Stdout))
	if err != nil {
		return 0
	}
	return n
}

// diffStat returns the `git diff --shortstat` summary of uncommitted changes
// in the checkout, or "" when the tree is clean or git fails.
func diffStat(ctx context.Context, runner execx.Runner, dir string) string {
	res, err := runner.Run(ctx, execx.Command{
		Name:    "git",
		Args:    []string{"diff", "--shortstat"},
		Dir:     dir,
		Timeout: execx.TimeoutShort,
	})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(res.Stdout)
}
