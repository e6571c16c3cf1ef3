// Package main (in bgremove-subfolder) is the command-line front of the background remover
package main

func main() {
	Execute()
}
