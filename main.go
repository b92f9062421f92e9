package main

import "github.com/projekportal/notifier/cmd"

func main() {
	cmd.Execute()
}
