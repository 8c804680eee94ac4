package main

import "github.com/dyike/CortexTrade/internal/cli"

func main() {
	cli.Run()
}
