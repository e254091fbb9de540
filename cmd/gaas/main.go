package main

import "github.com/Suyash-Gaurav/gaas-system/cmd/gaas/cmd"

func main() {
	cmd.Execute()
}
