package main

import "github.com/berarma/TinyPedal/cmd"

func main() {
	cmd.Execute()
}
