package main

import "github.com/diorama-project/diorama/cmd"

func main() {
	cmd.Execute()
}
