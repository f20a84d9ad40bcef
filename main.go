package main

import (
	"github.com/spf13/cobra"
)

const (
	releaseVersion = "0.1.0"
)

// @title Blind Tasting API
// @version 1.0
// @description Session synchronization and scoring for blind wine tastings.
// @BasePath /api/v1
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT.
func main() {
	cobra.CheckErr(newRootCmd().Execute())
}
