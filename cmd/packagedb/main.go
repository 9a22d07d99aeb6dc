package main

import "packagedb/internal/cli"

func main() {
	cli.Execute()
}
