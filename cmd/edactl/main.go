package main

import "github.com/JonMunkholm/workbench/internal/cli"

func main() {
	cli.Execute()
}
