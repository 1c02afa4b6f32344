package install

import "github.com/hashicorp/go-hclog"

type common struct {
	logger hclog.Logger
}

// L returns the configured logger, or the process default when none was
// set. It never mutates c, so it is safe from concurrent workers.
func (c *common) L() hclog.Logger {
	if c.logger != nil {
		return c.logger
	}

	return hclog.L()
}

func (c *common) SetLogger(logger hclog.Logger) {
	c.logger = logger
}
