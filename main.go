/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "tipbot/cmd"

func main() {
	cmd.Execute()
}
