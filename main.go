package main

import "github.com/francescomaiomascio/yai/cmd"

func main() {
	cmd.Execute()
}
