package main

import (
	"errors"
	"fmt"
	"os/user"
	"strconv"
	"strings"

	"github.com/lxc/confine/internal/cgroup"
)

// maxGraceMicros is the upper bound on --delay-to-sigkill.
const maxGraceMicros = 1_000_000

// ErrHelpRequested is returned by ParseArgs when -h/--help was given; it is not
// a parse failure, just a request to print usage and exit cleanly.
var ErrHelpRequested = errors.New("help requested")

// Configuration is the immutable, fully-parsed command line: which cgroups
// to create, the grace interval, the uid/gid to drop to, and the program to
// run.
type Configuration struct {
	CgroupPath  string
	Controllers []*cgroup.Controller
	GraceMicros int
	RunAsUid    *uint32
	RunAsGid    *uint32
	Program     string
	Argv        []string
}

// flagAliases maps the long flag spelling to the short one so both forms
// are accepted identically, the getopt_long way.
var flagAliases = map[string]string{
	"--controller":        "-c",
	"--path":               "-p",
	"--set":                "-s",
	"--delay-to-sigkill":   "-k",
	"--uid":                "-u",
	"--gid":                "-g",
	"--help":               "-h",
}

// ParseArgs parses the helper's command line (everything after argv[0])
// into a Configuration. On any parse error it returns a non-nil error; a
// -h/--help request also returns a non-nil error, ErrHelpRequested.
func ParseArgs(argv []string) (*Configuration, error) {
	cfg := &Configuration{}

	var (
		cgroupPathSet bool
		current       *cgroup.Controller
	)

	i := 0
	for i < len(argv) {
		token := argv[i]

		if token == "--" {
			rest := argv[i+1:]
			if len(rest) == 0 {
				return nil, errors.New("missing program after --")
			}

			cfg.Program = rest[0]
			cfg.Argv = rest

			return finalize(cfg, cgroupPathSet)
		}

		flag, inlineValue, hasInline := splitFlag(token)
		if short, ok := flagAliases[flag]; ok {
			flag = short
		}

		switch flag {
		case "-h":
			return nil, ErrHelpRequested
		case "-c":
			value, n, err := flagValue(argv, i, inlineValue, hasInline)
			if err != nil {
				return nil, err
			}

			current = &cgroup.Controller{Name: value}
			cfg.Controllers = append(cfg.Controllers, current)
			i += n

			continue
		case "-p":
			if cgroupPathSet {
				return nil, errors.New("-p/--path may only be given once")
			}

			value, n, err := flagValue(argv, i, inlineValue, hasInline)
			if err != nil {
				return nil, err
			}

			cfg.CgroupPath = value
			cgroupPathSet = true
			i += n

			continue
		case "-s":
			value, n, err := flagValue(argv, i, inlineValue, hasInline)
			if err != nil {
				return nil, err
			}

			if current == nil {
				return nil, errors.New("-s/--set must follow a -c/--controller")
			}

			key, val, ok := strings.Cut(value, "=")
			if !ok {
				return nil, fmt.Errorf("-s/--set value %q must contain '='", value)
			}

			current.Settings = append(current.Settings, cgroup.Setting{Key: key, Value: val})
			i += n

			continue
		case "-k":
			value, n, err := flagValue(argv, i, inlineValue, hasInline)
			if err != nil {
				return nil, err
			}

			grace, err := strconv.Atoi(value)
			if err != nil || grace < 0 || grace > maxGraceMicros {
				return nil, fmt.Errorf("-k/--delay-to-sigkill must be an integer in [0, %d]", maxGraceMicros)
			}

			cfg.GraceMicros = grace
			i += n

			continue
		case "-u":
			value, n, err := flagValue(argv, i, inlineValue, hasInline)
			if err != nil {
				return nil, err
			}

			uid, err := resolveUid(value)
			if err != nil {
				return nil, err
			}

			cfg.RunAsUid = &uid
			i += n

			continue
		case "-g":
			value, n, err := flagValue(argv, i, inlineValue, hasInline)
			if err != nil {
				return nil, err
			}

			gid, err := resolveGid(value)
			if err != nil {
				return nil, err
			}

			cfg.RunAsGid = &gid
			i += n

			continue
		default:
			return nil, fmt.Errorf("unrecognized option %q", token)
		}
	}

	return nil, errors.New("missing -- <program> [args...]")
}

// splitFlag splits a token like "--set=foo=bar" into ("--set", "foo=bar", true),
// or "-c" into ("-c", "", false).
func splitFlag(token string) (flag string, value string, hasInline bool) {
	if idx := strings.Index(token, "="); idx >= 0 && strings.HasPrefix(token, "-") {
		return token[:idx], token[idx+1:], true
	}

	return token, "", false
}

// flagValue resolves the value for the flag at argv[i]: either the inline
// "=value" already split off, or the next token. It returns how many argv
// slots the flag (and its value) consumed.
func flagValue(argv []string, i int, inlineValue string, hasInline bool) (string, int, error) {
	if hasInline {
		return inlineValue, 1, nil
	}

	if i+1 >= len(argv) {
		return "", 0, fmt.Errorf("option %q requires a value", argv[i])
	}

	return argv[i+1], 2, nil
}

// finalize validates the cross-field invariants (-c and -p must appear
// together) once parsing has consumed every flag.
func finalize(cfg *Configuration, cgroupPathSet bool) (*Configuration, error) {
	if len(cfg.Controllers) > 0 && !cgroupPathSet {
		return nil, errors.New("-p/--path is required when -c/--controller is given")
	}

	if cgroupPathSet && len(cfg.Controllers) == 0 {
		return nil, errors.New("-c/--controller is required when -p/--path is given")
	}

	return cfg, nil
}

// resolveUid resolves a -u value: a numeric uid, or a username looked up
// via the system user database. A resolved value of 0 is always refused.
func resolveUid(value string) (uint32, error) {
	if id, err := strconv.ParseUint(value, 10, 32); err == nil {
		return checkNonZero(uint32(id), "uid")
	}

	u, err := user.Lookup(value)
	if err != nil {
		return 0, fmt.Errorf("unknown user %q: %w", value, err)
	}

	id, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid uid for user %q: %w", value, err)
	}

	return checkNonZero(uint32(id), "uid")
}

// resolveGid is resolveUid's counterpart for -g.
func resolveGid(value string) (uint32, error) {
	if id, err := strconv.ParseUint(value, 10, 32); err == nil {
		return checkNonZero(uint32(id), "gid")
	}

	g, err := user.LookupGroup(value)
	if err != nil {
		return 0, fmt.Errorf("unknown group %q: %w", value, err)
	}

	id, err := strconv.ParseUint(g.Gid, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid gid for group %q: %w", value, err)
	}

	return checkNonZero(uint32(id), "gid")
}

func checkNonZero(id uint32, kind string) (uint32, error) {
	if id == 0 {
		return 0, fmt.Errorf("refusing to run as %s 0", kind)
	}

	return id, nil
}
