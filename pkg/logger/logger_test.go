package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialized with defaults", func() {
			So(Init(), ShouldBeNil)

			Convey("Then Get returns a usable logger", func() {
				l := Get()
				So(l, ShouldNotBeNil)
				So(func() { l.Info(context.Background(), "hello", String("k", "v")) }, ShouldNotPanic)
			})
		})

		Convey("When initialized with an unknown format", func() {
			err := InitWithWriter(&bytes.Buffer{}, "xml")

			Convey("Then it should fail", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "unknown log format")
			})
		})

		Reset(func() { _ = InitWithWriter(os.Stdout, FormatText) })
	})
}

func TestLoggerJSONOutput(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(InitWithWriter(&buf, FormatJSON), ShouldBeNil)
		Reset(func() { _ = InitWithWriter(os.Stdout, FormatText) })

		Convey("When logging with fields", func() {
			Get().With(String("run_id", "r-1")).Info(context.Background(), "sync finished",
				Int("fetched", 3), Bool("persisted", true))

			Convey("Then the line carries every field and the caller", func() {
				var line map[string]any
				So(json.Unmarshal(buf.Bytes(), &line), ShouldBeNil)
				So(line["msg"], ShouldEqual, "sync finished")
				So(line["run_id"], ShouldEqual, "r-1")
				So(line["fetched"], ShouldEqual, 3.0)
				So(line["persisted"], ShouldEqual, true)
				So(line["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When the level is raised to error", func() {
			So(SetLevelString("error"), ShouldBeNil)
			Get().Info(context.Background(), "dropped")

			Convey("Then info lines are filtered", func() {
				So(buf.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		for _, lvl := range []string{"debug", "INFO", " warn ", "warning", "error", ""} {
			So(SetLevelString(lvl), ShouldBeNil)
		}
		err := SetLevelString("loud")
		So(err, ShouldNotBeNil)
		So(strings.Contains(err.Error(), "unknown log level"), ShouldBeTrue)
	})
}

func TestLoggerNamed(t *testing.T) {
	Convey("Given an initialized logger", t, func() {
		So(Init(), ShouldBeNil)

		Convey("Then Named and Discard never return nil", func() {
			So(Named("test"), ShouldNotBeNil)
			So(Discard(), ShouldNotBeNil)
			So(func() { Discard().Error(context.Background(), "ignored") }, ShouldNotPanic)
		})
	})
}
