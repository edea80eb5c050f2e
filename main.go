package main

import "github.com/derickschaefer/nimbus/cmd"

func main() {
	cmd.Execute()
}
