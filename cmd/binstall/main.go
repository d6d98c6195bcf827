package main

import "github.com/oshokin/binstall/cmd/binstall/cmd"

func main() {
	cmd.Execute()
}
