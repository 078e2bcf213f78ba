package main

import "github.com/jayjOnly/VA-Validator/cmd"

func main() {
	cmd.Execute()
}
