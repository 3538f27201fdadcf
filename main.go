package main

import "ChordScroll/cmd"

func main() {
	cmd.Execute()
}
