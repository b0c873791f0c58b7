package loader

import "context"

// Status is the lifecycle state of a module record.
type Status uint8

const (
	StatusUnlinked Status = iota
	StatusLinking
	StatusLinked
	StatusEvaluating
	StatusEvaluated
	StatusErrored
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusUnlinked:
		return "unlinked"
	case StatusLinking:
		return "linking"
	case StatusLinked:
		return "linked"
	case StatusEvaluating:
		return "evaluating"
	case StatusEvaluated:
		return "evaluated"
	case StatusErrored:
		return "errored"
	}
	return "unknown"
}

// record is one module in the graph. Native records get their namespace at the
// end of linking; synthetic records (legacy and builtin) at construction.
// Fields other than the construction results are guarded by the evaluation lock.
type record struct {
	id     string
	path   string
	format Format

	native  NativeUnit
	legacy  LegacyUnit
	builtin string

	host *moduleHost
	ns   *Namespace

	deps   map[string]*record
	order  []*record
	status Status
	err    error
	// relink is set when the failure happened while linking.
	relink bool
}

func (r *record) requests() []string {
	if r.native == nil {
		return nil
	}
	return r.native.Requests()
}

// moduleHost implements Host for one record.
type moduleHost struct {
	l    *Loader
	id   string
	path string
}

func (h *moduleHost) Identifier() string { return h.id }

func (h *moduleHost) Path() string { return h.path }

func (h *moduleHost) Import(ctx context.Context, specifier string) (*Namespace, error) {
	return h.l.ImportFrom(ctx, specifier, h.id)
}

func (h *moduleHost) Resolve(ctx context.Context, specifier string) (string, error) {
	loc, err := h.l.locate(ctx, specifier, h.id)
	if err != nil {
		return "", err
	}
	return loc.id, nil
}

// ModuleInfo describes one module of the graph.
type ModuleInfo struct {
	Identifier   string   `json:"identifier" yaml:"identifier"`
	Path         string   `json:"path,omitempty" yaml:"path,omitempty"`
	Format       string   `json:"format" yaml:"format"`
	Status       string   `json:"status" yaml:"status"`
	Exports      []string `json:"exports,omitempty" yaml:"exports,omitempty"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}
