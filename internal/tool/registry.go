package tool

import (
	"fmt"
	"sync"

	mpcerrors "mpc/internal/errors"
)

// Builtin returns the tools mpc supports out of the box, in the order
// they are listed by --help.
func Builtin() []Tool {
	return []Tool{
		{Name: "ssh", Class: ClassSSH, SSH: SSHOption, Protocol: "ssh",
			Description: "SSH connection through mp connect"},
		{Name: "scp", Class: ClassSSH, SSH: SSHOption, Protocol: "scp",
			Description: "Secure copy through mp connect"},
		{Name: "sftp", Class: ClassSSH, SSH: SSHOption, Protocol: "ssh",
			Description: "SFTP connection through mp connect"},
		{Name: "rsync", Class: ClassSSH, SSH: SSHRemoteShell, Protocol: "rsync",
			Description: "Rsync through mp connect"},
		{Name: "git", Class: ClassSSH, SSH: SSHGitEnv, Protocol: "git",
			Description: "Git operations through mp connect"},

		{Name: "curl", Class: ClassHTTP, Proxy: ProxyFlag,
			Description: "Curl requests through mp connect proxy"},
		{Name: "wget", Class: ClassHTTP, Proxy: ProxyEnv,
			Description: "Wget requests through mp connect proxy"},
		{Name: "httpie", Executable: "http", Class: ClassHTTP, Proxy: ProxyHTTPie,
			Description: "HTTPie requests through mp connect proxy"},

		{Name: "mysql", Class: ClassTCP, DefaultPort: 3306,
			Description: "MySQL connection through mp connect"},
		{Name: "psql", Class: ClassTCP, DefaultPort: 5432,
			Description: "PostgreSQL connection through mp connect"},
		{Name: "redis-cli", Class: ClassTCP, DefaultPort: 6379,
			Description: "Redis CLI through mp connect"},
		{Name: "mongosh", Class: ClassTCP, DefaultPort: 27017,
			Description: "MongoDB shell through mp connect"},
		{Name: "xfreerdp", Class: ClassTCP, DefaultPort: 3389,
			Description: "RDP connection through mp connect"},
		{Name: "vncviewer", Class: ClassTCP, DefaultPort: 5900,
			Description: "VNC viewer through mp connect"},
		{Name: "ldapsearch", Class: ClassTCP, DefaultPort: 389,
			Description: "LDAP search through mp connect"},
		{Name: "ftp", Class: ClassTCP, DefaultPort: 21,
			Description: "FTP connection through mp connect"},
	}
}

// Registry maps tool names to Tools.  It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry returns a Registry preloaded with Builtin().
func NewRegistry() *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range Builtin() {
		r.put(t)
	}
	return r
}

// Register adds t, replacing any tool of the same name.
func (r *Registry) Register(t Tool) error {
	if err := t.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(t)
	return nil
}

func (r *Registry) put(t Tool) {
	if _, ok := r.tools[t.Name]; !ok {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Lookup returns the tool called name.  The error wraps
// errors.ErrUnknownTool.
func (r *Registry) Lookup(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return Tool{}, fmt.Errorf("%q: %w", name, mpcerrors.ErrUnknownTool)
	}
	return t, nil
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.tools[n])
	}
	return out
}
