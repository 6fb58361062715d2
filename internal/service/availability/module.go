package availability

import "go.uber.org/fx"

// Module provides the availability service to Fx.
var Module = fx.Provide(NewService)
