package app

// Status is a point-in-time view of one node.
type Status struct {
	Name      string   `json:"name"`
	Path      string   `json:"path"`
	Mode      string   `json:"mode"`
	Phase     string   `json:"phase"`
	FrameRate *float64 `json:"frame_rate,omitempty"`
	Children  []Status `json:"children,omitempty"`
}

// Snapshot reports the phase of every node below root. Nodes running in
// other processes report the phase last seen in this process.
func Snapshot(root App) Status {
	b := root.base()
	s := Status{
		Name:      b.name,
		Path:      b.cfg.Path,
		Mode:      b.Mode(),
		Phase:     b.Phase().String(),
		FrameRate: b.cfg.FrameRate,
	}
	for _, c := range b.children {
		s.Children = append(s.Children, Snapshot(c))
	}
	return s
}
