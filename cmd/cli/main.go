package main

import "github.com/alvesdmateus/base-images/internal/cli/commands"

func main() {
	commands.Execute()
}
