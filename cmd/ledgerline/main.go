package main

import "github.com/ledgerline/ledgerline/cmd/ledgerline/cli"

func main() {
	cli.Execute()
}
