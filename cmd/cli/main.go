package main

import "conventionhub/cmd/cli/command"

func main() {
	command.Execute()
}
