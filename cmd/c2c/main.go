package main

import (
	"Campus2Career/internal/bootstrap"
	pkg "Campus2Career/pkg/routes"

	"go.uber.org/fx"
)

func main() {
	bootstrap.Loadenv()
	app := fx.New(
		pkg.ServerModules,
	)

	app.Run()
}
