package main

import "github.com/PureDarwin/darwinbuild/internal/darwinbuild"

func main() {
	darwinbuild.Main()
}
