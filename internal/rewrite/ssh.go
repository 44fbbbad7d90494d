package rewrite

import (
	"fmt"

	"mpc/internal/invocation"
	"mpc/internal/tool"
)

// GitSSHCommand is the variable git reads its ssh command from.
const GitSSHCommand = "GIT_SSH_COMMAND"

// ProxyCommand returns "<helper> connect <protocol> %h %p"; ssh expands
// %h and %p for every connection it makes.
func ProxyCommand(helper, protocol string) string {
	return fmt.Sprintf("%s connect %s %%h %%p", helper, protocol)
}

// SSH builds the invocation for an SSH-family tool.  No forwarder is
// started for these; ssh runs the helper itself through ProxyCommand.
func SSH(t tool.Tool, argv []string, helper string) invocation.Invocation {
	pc := ProxyCommand(helper, t.Protocol)
	switch t.SSH {
	case tool.SSHRemoteShell:
		return invocation.New(t.Exec(), prepend(argv, "-e", "ssh -o ProxyCommand='"+pc+"'"))
	case tool.SSHGitEnv:
		return invocation.New(t.Exec(), argv).WithEnv(GitSSHCommand, "ssh -o ProxyCommand='"+pc+"'")
	default:
		return invocation.New(t.Exec(), prepend(argv, "-o", "ProxyCommand="+pc))
	}
}
