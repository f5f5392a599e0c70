package main

import "github.com/naka-gawa/velocity-dashboard/cmd"

func main() {
	cmd.Execute()
}
