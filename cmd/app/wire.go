//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/mars-clock/internal/bootstrap"
	"github.com/yanqian/mars-clock/internal/domain/marsclock"
	"github.com/yanqian/mars-clock/internal/infra/config"
	"github.com/yanqian/mars-clock/internal/infra/marsapi"
	httpiface "github.com/yanqian/mars-clock/internal/interface/http"
	"github.com/yanqian/mars-clock/pkg/logger"
	"github.com/yanqian/mars-clock/pkg/metrics"
)

func initializeApp(cfg *config.Config) (*bootstrap.App, error) {
	wire.Build(
		logger.New,
		metrics.NewClockMetrics,
		provideClockClient,
		provideChannels,
		provideDayLock,
		provideMetricsHandler,
		marsclock.NewService,
		wire.Bind(new(marsclock.TimeSource), new(*marsapi.Client)),
		wire.Bind(new(marsclock.Observer), new(*metrics.ClockMetrics)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
