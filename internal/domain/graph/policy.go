package graph

import "strings"

// Policy controls what counts as a system/operator function and which
// names are forced to be tree roots. The filtering rule set is injectable
// on purpose: the engine's notion of "noise" shifts between versions.
type Policy struct {
	// SystemFunctions is the denylist of libc/syscall-style names. They are
	// dropped from the function set and, when AllowExternal is set, accepted
	// as external callees in the call graph.
	SystemFunctions map[string]struct{}
	// OperatorPrefix marks engine-synthetic operator functions ("<operator>").
	OperatorPrefix string
	// EmptyMarkers are code bodies the engine emits for declarations it could
	// not resolve ("<empty>", "<global>").
	EmptyMarkers map[string]struct{}
	// GlobalScope is the pseudo-method the engine attributes file-scope calls to.
	GlobalScope string
	// UnknownFile marks records the engine could not place in the source tree.
	UnknownFile string
	// AllowExternal keeps edges to denylisted callees, tagged external.
	AllowExternal bool
	// EntryPoints are always tree roots even with incoming edges.
	EntryPoints []string
}

// DefaultPolicy mirrors the extraction engine's conventions for C/C++.
func DefaultPolicy() Policy {
	sys := make(map[string]struct{}, len(defaultSystemFunctions))
	for _, n := range defaultSystemFunctions {
		sys[n] = struct{}{}
	}
	return Policy{
		SystemFunctions: sys,
		OperatorPrefix:  "<operator>",
		EmptyMarkers:    map[string]struct{}{"<empty>": {}, "<global>": {}},
		GlobalScope:     "<global>",
		UnknownFile:     "<unknown>",
		AllowExternal:   true,
		EntryPoints:     []string{"main"},
	}
}

// WithSystemFunctions returns a copy of the policy with extra denylist names.
func (p Policy) WithSystemFunctions(names []string) Policy {
	sys := make(map[string]struct{}, len(p.SystemFunctions)+len(names))
	for n := range p.SystemFunctions {
		sys[n] = struct{}{}
	}
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			sys[n] = struct{}{}
		}
	}
	p.SystemFunctions = sys
	return p
}

func (p Policy) isSystem(name string) bool {
	_, ok := p.SystemFunctions[name]
	return ok
}

func (p Policy) isOperator(name string) bool {
	return p.OperatorPrefix != "" && strings.HasPrefix(name, p.OperatorPrefix)
}

func (p Policy) isEmptyBody(code string) bool {
	if strings.TrimSpace(code) == "" {
		return true
	}
	_, ok := p.EmptyMarkers[code]
	return ok
}

// defaultSystemFunctions is the common libc/POSIX surface the engine reports
// as call targets without definitions in the submitted source.
var defaultSystemFunctions = []string{
	// string manipulation
	"strcpy", "strncpy", "strcat", "strncat", "strlen", "strcmp", "strncmp",
	"strchr", "strrchr", "strstr", "strtok", "strtok_r", "strspn", "strcspn",
	"strpbrk", "strcasecmp", "strncasecmp", "strdup", "strndup",
	// memory operations
	"malloc", "calloc", "realloc", "free", "memcpy", "memmove", "memset",
	"memcmp", "memchr", "memrchr",
	// file I/O
	"fopen", "fclose", "fread", "fwrite", "fprintf", "fscanf", "fgets",
	"fputs", "fseek", "ftell", "rewind", "fflush", "feof", "ferror",
	"remove", "rename", "tmpfile", "tmpnam",
	// standard I/O
	"printf", "scanf", "getchar", "putchar", "gets", "puts", "fgetc",
	"fputc", "ungetc", "perror",
	// process control
	"exit", "abort", "atexit", "system", "getenv", "setenv", "unsetenv",
	// error handling
	"assert", "errno", "strerror",
	// time
	"time", "ctime", "gmtime", "localtime", "strftime", "mktime",
	// math
	"abs", "labs", "llabs", "div", "ldiv", "lldiv", "rand", "srand",
	// character handling
	"isalpha", "isdigit", "isalnum", "isspace", "isupper", "islower",
	"toupper", "tolower",
	// signals
	"signal", "raise", "sigaction", "sigprocmask",
	// system information
	"getpid", "getppid", "getuid", "getgid", "getlogin",
	// directories
	"mkdir", "rmdir", "chdir", "getcwd", "opendir", "readdir", "closedir",
	// sockets
	"socket", "bind", "listen", "accept", "connect", "send", "recv",
	"sendto", "recvfrom", "shutdown", "close",
	// network
	"gethostbyname", "gethostbyaddr", "getaddrinfo", "getnameinfo",
	// threads
	"pthread_create", "pthread_join", "pthread_detach", "pthread_exit",
	"pthread_mutex_init", "pthread_mutex_lock", "pthread_mutex_unlock",
	"pthread_cond_init", "pthread_cond_wait", "pthread_cond_signal",
}
