package main

import "github.com/nextlevelbuilder/storycast/cmd"

func main() {
	cmd.Execute()
}
