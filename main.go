package main

import "zm/cmd"

func main() {
	cmd.Execute()
}
