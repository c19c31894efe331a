package main

import "github.com/ridoystarlord/mongrato/cmd"

func main() {
	cmd.Execute()
}
