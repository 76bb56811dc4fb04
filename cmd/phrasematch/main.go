package main

import "phrasematch/internal/cli"

func main() {
	cli.Execute()
}
