package availability

import "go.uber.org/fx"

// Module provides the availability repository to Fx.
var Module = fx.Provide(NewRepository)
