package cgroup

import "fmt"

// Registry is the ordered, in-memory list of controllers declared on the
// command line. Order matches command-line declaration order and is
// preserved through every bulk operation below.
type Registry struct {
	Controllers []*Controller
}

// NewRegistry builds a Registry and resolves every controller's directory
// under the shared cgroup sub-path.
func NewRegistry(controllers []*Controller, cgroupPath string) *Registry {
	for _, c := range controllers {
		c.Freeze(cgroupPath)
	}

	return &Registry{Controllers: controllers}
}

// CreateAll creates every controller's cgroup directory, in order. On
// failure it does not roll back directories already created; instead it
// trims the registry to the controllers whose directories this call
// created, so a later DestroyAll removes exactly those and never touches a
// pre-existing leaf that made Create fail.
func (r *Registry) CreateAll() error {
	for i, c := range r.Controllers {
		err := Create(c)
		if err != nil {
			r.Controllers = r.Controllers[:i]
			return err
		}
	}

	return nil
}

// ConfigureAll writes every controller's settings, in order.
func (r *Registry) ConfigureAll() error {
	for _, c := range r.Controllers {
		err := Configure(c)
		if err != nil {
			return err
		}
	}

	return nil
}

// AttachAll moves pid into every controller's cgroup.
func (r *Registry) AttachAll(pid int) error {
	for _, c := range r.Controllers {
		err := Attach(c, pid)
		if err != nil {
			return fmt.Errorf("failed to attach pid to controller %s: %w", c.Name, err)
		}
	}

	return nil
}

// DestroyAll best-effort removes every controller's cgroup directory.
func (r *Registry) DestroyAll() {
	for _, c := range r.Controllers {
		Destroy(c)
	}
}

// ResidentPids returns the union of pids still listed across every
// controller's cgroup.procs.
func (r *Registry) ResidentPids() []int {
	seen := map[int]bool{}

	var pids []int

	for _, c := range r.Controllers {
		found, err := Pids(c)
		if err != nil {
			continue
		}

		for _, pid := range found {
			if !seen[pid] {
				seen[pid] = true

				pids = append(pids, pid)
			}
		}
	}

	return pids
}
