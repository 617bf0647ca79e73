package main

import "github.com/getsupporthub/search-provisioner/cmd"

func main() {
	cmd.Init()
}
