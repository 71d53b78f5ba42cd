package main

import "github.com/khanhnv2901/sparrow-cli/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}
