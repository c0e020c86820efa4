package main

import "github.com/tranvictor/vestingscope/cmd"

func main() {
	cmd.Execute()
}
