package main

import "github/itish2003/studybuddy/cmd"

func main() {
	cmd.Execute()
}
