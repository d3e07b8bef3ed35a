package main

import "github.com/pfrederiksen/camp-watch/internal/cli"

func main() {
	cli.Execute()
}
