package main

import "meta-harvest/cmd"

func main() {
	cmd.Execute()
}
