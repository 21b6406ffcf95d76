// Command confine spawns a program inside a set of cgroups, optionally
// dropping privileges first, and tears down every process and cgroup
// directory it created on every exit path: the target exiting on its own,
// the host closing stdin or stdout, or confine itself receiving SIGINT,
// SIGQUIT, or SIGTERM.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lxc/confine/internal/cgroup"
	"github.com/lxc/confine/internal/launcher"
	"github.com/lxc/confine/internal/supervisor"
	"github.com/lxc/confine/shared/logger"
	"github.com/lxc/confine/shared/version"
)

const usage = `Usage: confine [-p PATH -c CONTROLLER [-s KEY=VALUE]...]... [-k USEC] [-u UID] [-g GID] -- PROGRAM [ARGS...]

  -c, --controller NAME       cgroup controller to join (e.g. memory, cpu)
  -p, --path PATH             shared path under the controller, relative to its mount
  -s, --set KEY=VALUE         setting applied to the most recently declared -c
  -k, --delay-to-sigkill USEC grace period between SIGTERM and SIGKILL (default 0)
  -u, --uid UID|NAME          drop to this uid before exec
  -g, --gid GID|NAME          drop to this gid before exec
  -h, --help                  print this message and exit
  --                          end of options; PROGRAM and its ARGS follow
`

func main() {
	// argv[0] is renamed to launcher.Sentinel for the re-exec'd child
	// stage; everything else is confine's own normal invocation.
	if len(os.Args) > 0 && os.Args[0] == launcher.Sentinel {
		if len(os.Args) < 2 {
			fmt.Fprintln(os.Stderr, "confine-child: missing spec token")
			os.Exit(1)
		}

		err := launcher.RunChild(os.Args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "confine-child: %v\n", err)
			os.Exit(1)
		}

		// RunChild only returns on error; syscall.Exec never returns on
		// success.
		return
	}

	os.Exit(execute(os.Args[1:]))
}

// execute wires confine's hand-rolled option grammar into a cobra.Command.
// Flag parsing itself is disabled: -s binds to whichever -c most recently
// preceded it, an order-sensitive rule pflag's per-flag accumulation can't
// express, so ParseArgs gets the raw argv instead. With flag parsing
// disabled cobra handles neither --version nor -h/--help; run prints the
// version and the usage banner itself.
func execute(argv []string) int {
	exitCode := 0

	cmd := &cobra.Command{
		Use:                "confine [-p PATH -c CONTROLLER [-s KEY=VALUE]...]... [-k USEC] [-u UID] [-g GID] -- PROGRAM [ARGS...]",
		Short:              "Run a program confined to a set of cgroups",
		Version:            version.Version,
		DisableFlagParsing: true,
		SilenceErrors:      true,
		SilenceUsage:       true,
		RunE: func(_ *cobra.Command, args []string) error {
			exitCode = run(args)
			return nil
		},
	}

	cmd.SetArgs(argv)
	cmd.SetUsageTemplate(usage)
	cmd.SetHelpTemplate(usage)

	err := cmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "confine: %v\n", err)
		return 1
	}

	return exitCode
}

// run implements confine's own process: parse the command line, create and
// configure the cgroups, launch the child, and hand off to the supervisor.
func run(argv []string) int {
	if os.Getenv("CONFINE_DEBUG") != "" {
		logger.SetDebug(true)
	}

	if len(argv) == 1 && argv[0] == "--version" {
		fmt.Fprintf(os.Stdout, "confine %s\n", version.Version)
		return 0
	}

	cfg, err := ParseArgs(argv)
	if err != nil {
		if err == ErrHelpRequested {
			fmt.Fprint(os.Stdout, usage)
			return 0
		}

		fmt.Fprintf(os.Stderr, "confine: %v\n", err)
		fmt.Fprint(os.Stdout, usage)

		return 1
	}

	logger.Debugf("confine %s starting %q", version.Version, cfg.Program)

	reg := cgroup.NewRegistry(cfg.Controllers, cfg.CgroupPath)

	err = reg.CreateAll()
	if err != nil {
		logger.Errorf("failed to create cgroups: %v", err)
		reg.DestroyAll()

		return 1
	}

	err = reg.ConfigureAll()
	if err != nil {
		logger.Errorf("failed to configure cgroups: %v", err)
		reg.DestroyAll()

		return 1
	}

	cmd, err := launcher.Start(reg, cfg.RunAsUid, cfg.RunAsGid, cfg.Program, cfg.Argv)
	if err != nil {
		logger.Errorf("failed to launch child: %v", err)
		reg.DestroyAll()

		return 1
	}

	sup := &supervisor.Supervisor{
		ChildPid:    cmd.Process.Pid,
		GraceMicros: cfg.GraceMicros,
		Registry:    reg,
	}

	return sup.Run()
}
