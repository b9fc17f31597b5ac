package main

import "github.com/jmcleod/eventgate/cmd/eventgate/cmd"

func main() {
	cmd.Execute()
}
