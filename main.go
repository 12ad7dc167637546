/*
Copyright © 2026 JACOB ARTHURS
*/
package main

import "github.com/jacobarthurs/syswhy/cmd"

func main() {
	cmd.Execute()
}
