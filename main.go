/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/mujarchiv/rozhlasd/cmd"

// @title           rozhlasd API
// @version         1.0
// @description     Czech Radio catalog ingest and download daemon
// @contact.name    mujarchiv
// @contact.url     https://github.com/mujarchiv/rozhlasd
// @license.name    MIT
// @license.url     https://opensource.org/licenses/MIT
// @host            localhost:8080
// @BasePath        /
// @schemes         http
func main() {
	cmd.Execute()
}
