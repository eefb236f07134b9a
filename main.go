package main

import "github.com/ValentinKolb/dss/cmd"

func main() {
	cmd.Execute()
}
