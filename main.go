package main

import "github.com/Tiliavir/ticket-timer/cmd"

func main() {
	cmd.Execute()
}
