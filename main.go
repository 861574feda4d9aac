package main

import "github.com/pelicandev/pelican/cmd"

func main() {
	cmd.Execute()
}
