package main

import (
	"go.uber.org/fx"

	"github.com/aquacrest/hatchflow/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
