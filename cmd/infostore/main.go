package main

import infostorecmd "go.lumeweb.com/infostore/cmd"

func main() {
	infostorecmd.Main()
}
