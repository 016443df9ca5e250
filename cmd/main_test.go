package main

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/okian/tally/internal/adapters/http/api"
	"github.com/okian/tally/internal/adapters/http/swagger"
	app "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/config"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/validate"
	"github.com/okian/tally/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"
)

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("TALLY_ADDR", ":8080")
			_ = os.Setenv("TALLY_FEED_SIZE", "1000")
			defer func() {
				_ = os.Unsetenv("TALLY_ADDR")
				_ = os.Unsetenv("TALLY_FEED_SIZE")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.FeedSize, convey.ShouldEqual, 1000)
			})
		})

		convey.Convey("When testing service creation", func() {
			convey.Convey("Then service should be creatable with default options", func() {
				svc := app.New()
				convey.So(svc, convey.ShouldNotBeNil)
			})

			convey.Convey("And service should be creatable with custom options", func() {
				svc := app.New(
					app.WithFeedSize(2000),
					app.WithReplaySize(1000),
					app.WithSpeakerBounds(50, 100),
				)
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing HTTP server creation", func() {
			svc := app.New()
			convey.So(svc, convey.ShouldNotBeNil)

			convey.Convey("Then HTTP server should be creatable", func() {
				server := api.NewServer(svc, svc, 100)
				convey.So(server, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing metrics initialization", func() {
			convey.Convey("Then metrics manager should be creatable", func() {
				registry := prometheus.NewRegistry()
				manager := metrics.NewManager(metrics.WithRegistry(registry))
				convey.So(manager, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestConfigConversions(t *testing.T) {
	convey.Convey("Given config conversion helpers", t, func() {
		convey.Convey("When converting rubric bounds", func() {
			in := map[string]config.Bound{
				"content": {Min: 1, Max: 100},
				"style":   {Min: 1, Max: 50},
			}
			out := rubricBounds(in)

			convey.Convey("Then every category should carry over", func() {
				convey.So(len(out), convey.ShouldEqual, 2)
				convey.So(out["content"], convey.ShouldResemble, validate.Bounds{Min: 1, Max: 100})
				convey.So(out["style"].Max, convey.ShouldEqual, 50)
			})
		})

		convey.Convey("When converting stage cutoffs", func() {
			in := map[string]int{
				"preliminary": 8,
				"semifinal":   4,
				"playoffs":    2, // unknown stage name
			}
			out := stageCutoffs(in)

			convey.Convey("Then unknown stages should be dropped", func() {
				convey.So(len(out), convey.ShouldEqual, 2)
				convey.So(out[model.StagePreliminary], convey.ShouldEqual, 8)
				convey.So(out[model.StageSemifinal], convey.ShouldEqual, 4)
			})
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When testing the service metrics updater", func() {
			svc := app.New()
			convey.So(svc, convey.ShouldNotBeNil)

			convey.Convey("Then it should run until the context expires", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startServiceMetricsUpdater(ctx, svc)
				}, convey.ShouldNotPanic)
			})
		})
	})
}

func TestMainApplicationIntegration(t *testing.T) {
	convey.Convey("Given main application integration", t, func() {
		convey.Convey("When testing full application setup", func() {
			_ = os.Setenv("TALLY_ADDR", ":8080")
			defer func() { _ = os.Unsetenv("TALLY_ADDR") }()

			convey.Convey("Then all components should work together", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)

				// Create service without starting to avoid touching the DB
				svc := app.New(
					app.WithFeedSize(cfg.FeedSize),
					app.WithReplaySize(cfg.ReplaySize),
				)
				convey.So(svc, convey.ShouldNotBeNil)

				server := api.NewServer(svc, svc, cfg.MaxStandingsLimit)
				convey.So(server, convey.ShouldNotBeNil)

				mux := http.NewServeMux()
				server.Register(ctx, mux)
				swagger.Register(ctx, mux)

				svc.Stop()
			})
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given main application error handling", t, func() {
		convey.Convey("When testing invalid configuration", func() {
			_ = os.Setenv("TALLY_ADDR", "")
			defer func() { _ = os.Unsetenv("TALLY_ADDR") }()

			convey.Convey("Then configuration loading should fail", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When testing service creation with invalid options", func() {
			convey.Convey("Then service should fall back to defaults", func() {
				svc := app.New(
					app.WithFeedSize(0),
					app.WithReplaySize(-1),
					app.WithSpeakerBounds(100, 0),
				)
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})
	})
}
