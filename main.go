package main

import "orderscout/cmd"

func main() {
	cmd.Execute()
}
