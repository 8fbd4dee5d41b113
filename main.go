package main

import "github.com/agentic-research/skilltree/cmd"

func main() {
	cmd.Execute()
}
