package main

import "github.com/itswl/balance-alert/internal/cli"

func main() {
	cli.Execute()
}
