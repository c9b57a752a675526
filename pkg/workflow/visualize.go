package workflow

import "fmt"

// Info represents the workflow structure for inspection
type Info struct {
	Name  string
	Steps []string
	Edges []EdgeInfo
}

// EdgeInfo is a single dependency edge, upstream to downstream
type EdgeInfo struct {
	From string
	To   string
}

func (d *Definition) Info() *Info {
	info := &Info{
		Name:  d.name,
		Steps: d.StepNames(),
	}
	for _, name := range d.order {
		for _, dep := range d.steps[name].after {
			info.Edges = append(info.Edges, EdgeInfo{From: dep, To: name})
		}
	}
	return info
}

func (d *Definition) Print() {
	info := d.Info()

	fmt.Printf("Workflow: %s\n\n", info.Name)

	fmt.Println("Steps:")
	for _, step := range info.Steps {
		if len(d.steps[step].after) == 0 {
			fmt.Printf("  * %s (source)\n", step)
		} else {
			fmt.Printf("  - %s\n", step)
		}
	}

	fmt.Println("\nEdges:")
	for _, edge := range info.Edges {
		fmt.Printf("  %s --> %s\n", edge.From, edge.To)
	}
}
