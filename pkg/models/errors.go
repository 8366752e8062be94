package models

import "errors"

var (
	errEmptyAgents           = errors.New("models: network must contain at least one agent")
	errEmptyWorkingDirectory = errors.New("models: network working directory must not be empty")
)
