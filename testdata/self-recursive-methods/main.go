// Package main checks recursion detection and the objects that reach
// recursive methods.
package main

import "fmt"

type Node struct {
	value    string
	children []*Node
}

type Processor struct {
	data map[string]interface{}
}

// Process is not recursive itself.
func (p *Processor) Process(values ...interface{}) {
	p.assignValuesToData(values...)
}

// assignValuesToData calls itself directly.
func (p *Processor) assignValuesToData(values ...interface{}) {
	for _, value := range values {
		switch v := value.(type) {
		case []interface{}:
			p.assignValuesToData(v...)
		case map[string]interface{}:
			for _, val := range v {
				p.assignValuesToData(val)
			}
		default:
			fmt.Printf("Processing value: %v\n", v)
		}
	}
}

func (n *Node) Walk() {
	n.walkInternal(0)
}

// walkInternal is reached with every node of the tree as receiver.
func (n *Node) walkInternal(depth int) {
	fmt.Printf("%*s%s\n", depth*2, "", n.value)
	for _, child := range n.children {
		child.walkInternal(depth + 1)
	}
}

type Parser struct {
	tokens []string
}

func (p *Parser) Parse() {
	p.parseExpression(0)
}

// parseExpression and parseTerm form one strongly connected component.
func (p *Parser) parseExpression(pos int) int {
	fmt.Println("parseExpression at", pos)
	if pos < len(p.tokens) && p.tokens[pos] == "(" {
		return p.parseTerm(pos + 1)
	}
	return pos
}

func (p *Parser) parseTerm(pos int) int {
	fmt.Println("parseTerm at", pos)
	if pos < len(p.tokens) && p.tokens[pos] == "[" {
		return p.parseExpression(pos + 1)
	}
	return pos
}

func main() {
	p := &Processor{data: make(map[string]interface{})}
	p.Process(
		"simple",
		[]interface{}{"nested", "array"},
		map[string]interface{}{
			"key": []interface{}{"deep", "nesting"},
		},
	)

	root := &Node{
		value: "root",
		children: []*Node{
			{value: "child1"},
			{value: "child2", children: []*Node{{value: "grandchild"}}},
		},
	}
	root.Walk()

	parser := &Parser{tokens: []string{"(", "[", "]", ")"}}
	parser.Parse()
}
