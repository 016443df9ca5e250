package logger

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given an initialized global logger", t, func() {
		So(Init(), ShouldBeNil)

		Convey("Then Get returns a usable logger", func() {
			l := Get()
			So(l, ShouldNotBeNil)
			l.Info(context.Background(), "hello", String("k", "v"), Int("n", 1))
		})

		Convey("And Named returns a grouped sub-logger", func() {
			l := Named("store")
			So(l, ShouldNotBeNil)
			l.Debug(context.Background(), "grouped")
		})

		Convey("And With attaches persistent fields", func() {
			l := Get().With(String("component", "test"))
			So(l, ShouldNotBeNil)
			l.Warn(context.Background(), "with fields")
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given the level parser", t, func() {
		So(Init(), ShouldBeNil)

		Convey("Then known levels parse", func() {
			for _, lvl := range []string{"debug", "info", "warn", "warning", "error", ""} {
				So(SetLevelString(lvl), ShouldBeNil)
			}
		})

		Convey("And unknown levels are rejected", func() {
			So(SetLevelString("loud"), ShouldNotBeNil)
		})
	})
}
