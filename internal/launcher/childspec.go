package launcher

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Sentinel is the renamed argv[0] the re-exec'd process is started with, so
// confine's own main() can recognize "this invocation is the child launcher
// stage" without any other process on the system mistaking it for a normal
// confine invocation. Mirrors the HelperInitProgName technique from
// kawamuray/cgrun.
const Sentinel = "confine-child"

// ChildSpec is everything the re-exec'd child stage needs to attach itself
// to its cgroups, drop privileges, and exec the real target. It travels
// from the parent to the child as a single base64-encoded argv token,
// because the fork/exec boundary in Go offers no shared-memory handoff the
// way a literal fork() would.
type ChildSpec struct {
	// ProcFiles are the cgroup.procs paths the child must write its own
	// pid into before exec, in registry order.
	ProcFiles []string `json:"proc_files"`

	// Gid and Uid are the resolved, non-zero ids to drop to, or nil if
	// unset.
	Gid *uint32 `json:"gid,omitempty"`
	Uid *uint32 `json:"uid,omitempty"`

	// Program is resolved via PATH lookup in the child, the same way
	// execvp would.
	Program string `json:"program"`

	// Argv is passed to exec verbatim; by convention Argv[0] is the
	// program name.
	Argv []string `json:"argv"`
}

// Encode base64-encodes the spec as a single opaque argv token.
func (s *ChildSpec) Encode() (string, error) {
	buf, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode child spec: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf), nil
}

// DecodeChildSpec reverses Encode.
func DecodeChildSpec(token string) (*ChildSpec, error) {
	buf, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("failed to decode child spec: %w", err)
	}

	var spec ChildSpec

	err = json.Unmarshal(buf, &spec)
	if err != nil {
		return nil, fmt.Errorf("failed to parse child spec: %w", err)
	}

	return &spec, nil
}
