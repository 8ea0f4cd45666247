package main

import "github.com/kozaktomas/picscreenr/cmd"

func main() {
	cmd.Execute()
}
