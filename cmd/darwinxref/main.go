package main

import "github.com/PureDarwin/darwinbuild/internal/xref"

func main() {
	xref.Main()
}
