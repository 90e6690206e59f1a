package main

import "WaveDeck/cmd"

func main() {
	cmd.Execute()
}
