package transport

import (
	"runtime"
	"strings"
)

// runners are package managers whose "<runner> <subcommand> ..." invocations
// are executed directly rather than through a shell.
var runners = map[string]bool{
	"npm":  true,
	"npx":  true,
	"pnpm": true,
	"yarn": true,
	"bun":  true,
	"bunx": true,
}

// shellSyntax is text only a shell can interpret: operators, quoting,
// expansion, globbing and environment assignments.
const shellSyntax = "|&;<>()$`\\\"'*?[]{}#~=%\n"

// splitRunner splits a plain runner invocation into program and arguments.
// ok is false when the command needs a shell.
func splitRunner(command string) (prog string, args []string, ok bool) {
	if strings.ContainsAny(command, shellSyntax) {
		return "", nil, false
	}
	fields := strings.Fields(command)
	if len(fields) < 2 || !runners[fields[0]] {
		return "", nil, false
	}
	return fields[0], fields[1:], true
}

// commandArgs decides how command is executed. Runners on Windows are batch
// shims (npm.cmd and friends) that need cmd.exe, so they always go through
// the shell there.
func commandArgs(command string) (prog string, args []string) {
	if runtime.GOOS != "windows" {
		if prog, args, ok := splitRunner(command); ok {
			return prog, args
		}
	}
	return shellExecArgs(command)
}
