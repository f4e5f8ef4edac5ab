//go:build !linux

package main

import (
	"context"

	"github.com/edirooss/smokers/internal/config"
	"github.com/edirooss/smokers/internal/domain/factory"
	"github.com/edirooss/smokers/internal/infrastructure/tracelog"
	"github.com/edirooss/smokers/internal/service"
	"go.uber.org/zap"
)

func runProcesses(context.Context, *zap.Logger, config.Config, *backend, *tracelog.File) (*factory.State, error) {
	return nil, service.ErrProcessMode
}
