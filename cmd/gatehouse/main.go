package main

import "github.com/mfinch/gatehouse/cmd/gatehouse/cmd"

func main() {
	cmd.Execute()
}
