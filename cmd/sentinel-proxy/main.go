package main

import "github.com/sentinel-intercept/proxy/cmd/sentinel-proxy/cmd"

func main() {
	cmd.Execute()
}
