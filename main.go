package main

import "github.com/kozaktomas/photo-tagger/cmd"

func main() {
	cmd.Execute()
}
