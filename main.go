package main

import "streamfm/cmd"

func main() {
	cmd.Execute()
}
