package main

import "github.com/Zerofisher/megatable/cmd"

func main() {
	cmd.Execute()
}
