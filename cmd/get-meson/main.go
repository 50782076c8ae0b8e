package main

import "github.com/oshokin/get-meson/cmd/get-meson/cmd"

func main() {
	cmd.Execute()
}
