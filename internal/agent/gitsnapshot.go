package agent

import (
	"context"
	"strings"
	"time"
)

// snapshotGit takes a one-time, best-effort snapshot of the working tree's
// git status for inclusion in the system prompt's <environment> block
// (§4.3.7). It shells out via the session's own ExecutionEnvironment rather
// than the os/exec package directly, so it is subject to the same command
// timeout and process-registry bookkeeping as any other tool call.
func snapshotGit(env ExecutionEnvironment, workDir string) (inRepo bool, branch string, modified, untracked int, recentCommits []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	run := func(args string) (string, bool) {
		res, err := env.ExecCommand(ctx, "git "+args, 5000, workDir, nil)
		if err != nil || res.ExitCode != 0 {
			return "", false
		}
		return strings.TrimSpace(res.Stdout), true
	}

	if _, ok := run("rev-parse --is-inside-work-tree"); !ok {
		return false, "", 0, 0, nil
	}
	inRepo = true

	if b, ok := run("branch --show-current"); ok {
		branch = b
	}

	if status, ok := run("status --porcelain"); ok && status != "" {
		for _, line := range strings.Split(status, "\n") {
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "??") {
				untracked++
			} else {
				modified++
			}
		}
	}

	if log, ok := run(`log -n 5 --pretty=format:%s`); ok && log != "" {
		recentCommits = strings.Split(log, "\n")
	}
	return inRepo, branch, modified, untracked, recentCommits
}
