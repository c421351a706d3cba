// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package gitremote publishes knowledgebase documents to a git remote by
// shelling out to the git command. It implements syncer.Transport: reading
// the remote head of the sync branch and pushing staged documents as a
// single commit, so the remote either advances by one commit or stays put.
package gitremote

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/pdiddy/kbmd/internal/syncer"
	"github.com/pdiddy/kbmd/pkg/types"
)

// Client runs git inside the working tree that contains the knowledgebase.
type Client struct {
	workTree string
	remote   string
	ref      string
	timeout  time.Duration
}

// New creates a git transport for the given working tree. Remote and ref
// default to origin/main when the config leaves them empty.
func New(workTree string, cfg types.SyncConfig) *Client {
	remote := cfg.Remote
	if remote == "" {
		remote = "origin"
	}
	ref := cfg.Ref
	if ref == "" {
		ref = "main"
	}
	timeout := cfg.CommandTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{workTree: workTree, remote: remote, ref: ref, timeout: timeout}
}

// CurrentReference returns the commit hash the sync branch points to on the
// remote, or the empty string when the branch does not exist there yet.
func (c *Client) CurrentReference(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "ls-remote", c.remote, "refs/heads/"+c.ref)
	if err != nil {
		return "", &syncer.TransportError{Op: "ls-remote", Err: err}
	}
	return parseLsRemote(out), nil
}

// Publish stages the given paths, commits them, and pushes the commit to the
// sync branch. The remote head is re-checked immediately before the push so a
// concurrent writer surfaces as a ConflictError rather than a failed push.
func (c *Client) Publish(ctx context.Context, paths []string, message, expectedBase string) (string, error) {
	if len(paths) == 0 {
		return "", &syncer.TransportError{Op: "publish", Err: fmt.Errorf("no paths to publish")}
	}

	args := append([]string{"add", "--"}, paths...)
	if _, err := c.run(ctx, args...); err != nil {
		return "", &syncer.TransportError{Op: "add", Err: err}
	}

	// Nothing staged means the working tree already matches the last commit.
	// Push anyway in case the branch itself has not reached the remote.
	if _, err := c.run(ctx, "diff", "--cached", "--quiet"); err != nil {
		if _, err := c.run(ctx, "commit", "-m", message); err != nil {
			return "", &syncer.TransportError{Op: "commit", Err: err}
		}
	}

	live, err := c.CurrentReference(ctx)
	if err != nil {
		return "", err
	}
	if expectedBase != "" && live != "" && live != expectedBase {
		return "", &syncer.ConflictError{Base: expectedBase, Live: live}
	}

	if out, err := c.run(ctx, "push", c.remote, "HEAD:refs/heads/"+c.ref); err != nil {
		if isNonFastForward(out) {
			moved, refErr := c.CurrentReference(ctx)
			if refErr != nil {
				moved = live
			}
			return "", &syncer.ConflictError{Base: expectedBase, Live: moved}
		}
		return "", &syncer.TransportError{Op: "push", Err: err}
	}

	head, err := c.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", &syncer.TransportError{Op: "rev-parse", Err: err}
	}
	return strings.TrimSpace(head), nil
}

// run executes git with the client's working tree and timeout. The combined
// output is returned even on failure so callers can inspect git's message.
func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	full := append([]string{"-C", c.workTree}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// parseLsRemote extracts the commit hash from ls-remote output. Empty output
// means the ref does not exist on the remote.
func parseLsRemote(out string) string {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && strings.HasPrefix(fields[1], "refs/") {
			return fields[0]
		}
	}
	return ""
}

// isNonFastForward reports whether a failed push was rejected because the
// remote moved, as opposed to a transport failure.
func isNonFastForward(out string) bool {
	return strings.Contains(out, "non-fast-forward") ||
		strings.Contains(out, "fetch first") ||
		strings.Contains(out, "[rejected]")
}
