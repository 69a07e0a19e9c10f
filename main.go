package main

import "ops-task-service.com/ops-task-service/cmd"

func main() {
	cmd.Execute()
}
