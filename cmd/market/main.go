package main

import "github.com/safar/resale-market/internal/cli"

func main() {
	cli.Execute()
}
