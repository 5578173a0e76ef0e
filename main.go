package main

import "github.com/nextlevelbuilder/overblick/cmd"

func main() {
	cmd.Execute()
}
