package main

import "personabot/cmd"

func main() {
	cmd.Execute()
}
