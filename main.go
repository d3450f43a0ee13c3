package main

import "github.com/KaramelBytes/listingloom/cmd"

func main() {
	cmd.Execute()
}
