package main

import "fund-nav-monitor/internal/cli"

func main() {
	cli.Execute()
}
