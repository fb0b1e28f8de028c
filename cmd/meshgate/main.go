package main

func main() {
	SetupServeCmd()
	SetupMigrateCmd()
	SetupRoutesCmd()
	Execute()
}
