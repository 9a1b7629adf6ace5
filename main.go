package main

import "github.com/r0mai/iracing-stats/cmd"

func main() {
	cmd.Execute()
}
