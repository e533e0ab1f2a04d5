// @title           Change Gin API
// @version         1.0
// @description     Change management workflow API server

// @host      localhost:8080
// @BasePath  /api/v1
package main

import "github.com/mautops/change-gin/cmd"

func main() {
	cmd.Execute()
}
