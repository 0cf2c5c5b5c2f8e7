package main

import "github.com/truemediaorg/detectbot/cmd"

func main() {
	cmd.Execute()
}
