package main

import (
	"io"

	"github.com/diwise/json-commands/internal/pkg/infrastructure/database/postgres"
)

type FlagType int
type FlagMap map[FlagType]string

const (
	listenAddress FlagType = iota
	servicePort

	configPath
	opaPath

	logFormat
)

type AppConfig struct {
	configFile io.ReadCloser
	opaConfig  io.ReadCloser
	database   postgres.Config
}
