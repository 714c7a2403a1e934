package main

import "github.com/opsgrove/stockwatch/internal/cli"

func main() {
	cli.Execute()
}
