package main

import "github.com/jmcleod/incorpdash/cmd/incorpdash/cmd"

func main() {
	cmd.Execute()
}
