package observability

import "github.com/edaschema/edaschema/internal/logger"

var log = logger.Global().Module("metrics")
