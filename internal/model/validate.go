package model

import "fmt"

// Validate enforces the tree invariant at the adapter boundary: every
// joint endpoint resolves, no link has two parent joints, there is exactly
// one root, and every link is reachable from it. A model that fails here
// is rejected before it ever reaches the alignment engine.
func (m *Model) Validate() error {
	if len(m.Links) == 0 {
		return fmt.Errorf("model %q has no links", m.Name)
	}

	parentJoint := make(map[string]string, len(m.Links))
	for _, j := range m.Joints {
		if _, ok := m.Links[j.Parent]; !ok {
			return fmt.Errorf("joint %q references unknown parent link %q", j.Name, j.Parent)
		}
		if _, ok := m.Links[j.Child]; !ok {
			return fmt.Errorf("joint %q references unknown child link %q", j.Name, j.Child)
		}
		if j.Parent == j.Child {
			return fmt.Errorf("joint %q connects link %q to itself", j.Name, j.Child)
		}
		if prev, ok := parentJoint[j.Child]; ok {
			return fmt.Errorf("link %q has two parent joints (%q and %q)", j.Child, prev, j.Name)
		}
		parentJoint[j.Child] = j.Name
	}

	var root string
	for name := range m.Links {
		if _, ok := parentJoint[name]; !ok {
			if root != "" {
				return fmt.Errorf("disconnected tree: multiple root links (%q and %q)", root, name)
			}
			root = name
		}
	}
	if root == "" {
		// Every link has a parent: the joint graph contains a cycle.
		return fmt.Errorf("link/joint graph contains a cycle")
	}

	// Walk up from each link; a repeat visit without reaching the root
	// means a cycle that also left the root orphaned is impossible here,
	// but depth beyond the link count still guards against it.
	for name := range m.Links {
		cur, steps := name, 0
		for cur != root {
			jn, ok := parentJoint[cur]
			if !ok {
				return fmt.Errorf("link %q is not connected to root %q", name, root)
			}
			cur = m.Joints[jn].Parent
			if steps++; steps > len(m.Links) {
				return fmt.Errorf("link/joint graph contains a cycle through %q", name)
			}
		}
	}
	return nil
}

// Root returns the name of the root link. Valid only after Validate has
// succeeded.
func (m *Model) Root() string {
	hasParent := make(map[string]bool, len(m.Links))
	for _, j := range m.Joints {
		hasParent[j.Child] = true
	}
	for name := range m.Links {
		if !hasParent[name] {
			return name
		}
	}
	return ""
}
