package agent

import "fmt"

// BuildTree validates that root's sub-agent composition forms a rooted DAG
// with no cycles (spec §4.4) and returns a flat index of every agent in the
// tree keyed by name, which the Runner uses to find the agent a turn starts
// from. A name reused across two distinct *Agent values is also rejected:
// names are the addressing scheme for that lookup and for tool-stub
// registration, and must be unique within one tree.
func BuildTree(root *Agent) (map[string]*Agent, error) {
	if root == nil {
		return nil, fmt.Errorf("agent: nil root")
	}
	index := make(map[string]*Agent)
	visiting := make(map[*Agent]bool)
	var walk func(a *Agent) error
	walk = func(a *Agent) error {
		if visiting[a] {
			return ErrCycle
		}
		visiting[a] = true
		defer delete(visiting, a)

		if existing, ok := index[a.Name]; ok && existing != a {
			return fmt.Errorf("agent: duplicate agent name %q", a.Name)
		}
		index[a.Name] = a

		for _, child := range a.SubAgents {
			if child == nil {
				continue
			}
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return index, nil
}
